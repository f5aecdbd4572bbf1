package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/joncarter1/brr/internal/cloud"
)

// Regions returns every region enabled for the account.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	out, err := c.api.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, wrapError("DescribeRegions", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, region := range out.Regions {
		regions = append(regions, aws.ToString(region.RegionName))
	}
	return regions, nil
}

// taggedFilter matches resources carrying the cluster tag key, whatever
// its value. Teardown sweeps every cluster this tool ever created.
var taggedFilter = ec2types.Filter{
	Name:   aws.String("tag-key"),
	Values: []string{cloud.TagClusterName},
}

// DiscoverResources lists every live resource this tool owns in one
// region: instances, their volumes, and key pairs.
func (c *Client) DiscoverResources(ctx context.Context, region string) ([]cloud.Resource, error) {
	api := c.apiFor(region)
	var resources []cloud.Resource

	instInput := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			taggedFilter,
			{Name: aws.String("instance-state-name"), Values: nonTerminatedStates},
		},
	}
	for {
		out, err := api.DescribeInstances(ctx, instInput)
		if err != nil {
			return nil, wrapError("DescribeInstances", err)
		}
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				resources = append(resources, cloud.Resource{
					Provider: providerName,
					Region:   region,
					Kind:     cloud.KindInstance,
					ID:       aws.ToString(inst.InstanceId),
					Name:     tagMap(inst.Tags)["Name"],
				})
			}
		}
		if out.NextToken == nil {
			break
		}
		instInput.NextToken = out.NextToken
	}

	volOut, err := api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{taggedFilter},
	})
	if err != nil {
		return nil, wrapError("DescribeVolumes", err)
	}
	for _, vol := range volOut.Volumes {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindVolume,
			ID:       aws.ToString(vol.VolumeId),
			Name:     tagMap(vol.Tags)["Name"],
		})
	}

	keyOut, err := api.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []ec2types.Filter{taggedFilter},
	})
	if err != nil {
		return nil, wrapError("DescribeKeyPairs", err)
	}
	for _, key := range keyOut.KeyPairs {
		resources = append(resources, cloud.Resource{
			Provider: providerName,
			Region:   region,
			Kind:     cloud.KindKeyPair,
			ID:       aws.ToString(key.KeyPairId),
			Name:     aws.ToString(key.KeyName),
		})
	}

	return resources, nil
}

// DestroyResource deletes one resource. Already-deleted resources are a
// no-op success, so a re-run after partial failure converges.
func (c *Client) DestroyResource(ctx context.Context, r cloud.Resource) error {
	api := c.apiFor(r.Region)

	switch r.Kind {
	case cloud.KindInstance:
		_, err := api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{r.ID}})
		if isInstanceGone(err) {
			return nil
		}
		return wrapError("TerminateInstances", err)

	case cloud.KindVolume:
		_, err := api.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(r.ID)})
		if isCode(err, "InvalidVolume.NotFound") {
			return nil
		}
		return wrapError("DeleteVolume", err)

	case cloud.KindKeyPair:
		_, err := api.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyPairId: aws.String(r.ID)})
		if isCode(err, "InvalidKeyPair.NotFound") {
			return nil
		}
		return wrapError("DeleteKeyPair", err)

	default:
		return fmt.Errorf("unsupported resource kind %q on %s", r.Kind, providerName)
	}
}
