package hetzner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/joncarter1/brr/internal/cloud"
)

// globalRegion is the single teardown sweep for this provider. Hetzner's
// list APIs are account-wide rather than location-scoped, and networks
// and SSH keys have no location at all, so one sweep covers everything.
const globalRegion = "hcloud"

// labelSelector matches resources carrying the cluster label key,
// whatever its value.
const labelSelector = cloud.TagClusterName

// Regions returns the provider's teardown sweeps.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	return []string{globalRegion}, nil
}

// DiscoverResources lists every live resource this tool owns: servers,
// volumes, SSH keys, and networks.
func (c *Client) DiscoverResources(ctx context.Context, region string) ([]cloud.Resource, error) {
	var resources []cloud.Resource
	listOpts := hcloud.ListOpts{LabelSelector: labelSelector}

	servers, err := c.hc.Server.AllWithOpts(ctx, hcloud.ServerListOpts{ListOpts: listOpts})
	if err != nil {
		return nil, wrapError("ListServers", err)
	}
	for _, server := range servers {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindInstance,
			ID:       strconv.FormatInt(server.ID, 10),
			Name:     server.Name,
		})
	}

	volumes, err := c.hc.Volume.AllWithOpts(ctx, hcloud.VolumeListOpts{ListOpts: listOpts})
	if err != nil {
		return nil, wrapError("ListVolumes", err)
	}
	for _, volume := range volumes {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindVolume,
			ID:       strconv.FormatInt(volume.ID, 10),
			Name:     volume.Name,
		})
	}

	keys, err := c.hc.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{ListOpts: listOpts})
	if err != nil {
		return nil, wrapError("ListSSHKeys", err)
	}
	for _, key := range keys {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindKeyPair,
			ID:       strconv.FormatInt(key.ID, 10),
			Name:     key.Name,
		})
	}

	networks, err := c.hc.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{ListOpts: listOpts})
	if err != nil {
		return nil, wrapError("ListNetworks", err)
	}
	for _, network := range networks {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindNetwork,
			ID:       strconv.FormatInt(network.ID, 10),
			Name:     network.Name,
		})
	}

	return resources, nil
}

// DestroyResource deletes one resource. Already-deleted resources are a
// no-op success, so a re-run after partial failure converges.
func (c *Client) DestroyResource(ctx context.Context, r cloud.Resource) error {
	id, err := parseID(r.ID)
	if err != nil {
		return err
	}

	switch r.Kind {
	case cloud.KindInstance:
		_, _, err = c.hc.Server.DeleteWithResult(ctx, &hcloud.Server{ID: id})
		if isNotFound(err) {
			return nil
		}
		return wrapError("DeleteServer", err)

	case cloud.KindVolume:
		_, err = c.hc.Volume.Delete(ctx, &hcloud.Volume{ID: id})
		if isNotFound(err) {
			return nil
		}
		return wrapError("DeleteVolume", err)

	case cloud.KindKeyPair:
		_, err = c.hc.SSHKey.Delete(ctx, &hcloud.SSHKey{ID: id})
		if isNotFound(err) {
			return nil
		}
		return wrapError("DeleteSSHKey", err)

	case cloud.KindNetwork:
		_, err = c.hc.Network.Delete(ctx, &hcloud.Network{ID: id})
		if isNotFound(err) {
			return nil
		}
		return wrapError("DeleteNetwork", err)

	default:
		return fmt.Errorf("unsupported resource kind %q on %s", r.Kind, providerName)
	}
}
