package infra

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

type ec2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
}

// EC2Client is both the image catalog and the compute API of the provisioner.
type EC2Client struct {
	api ec2API
}

func InitEC2Client(cfg *config.EnvConfig) *EC2Client {
	awsCfg, err := LoadAWSConfig(context.Background(), cfg, cfg.AWS.Region)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize EC2 client: %v", err))
	}

	log.Println("EC2 client ready in region:", cfg.AWS.Region)
	return NewEC2Client(ec2.NewFromConfig(awsCfg))
}

func NewEC2Client(api ec2API) *EC2Client {
	return &EC2Client{api: api}
}

// DescribeImages lists images matching every set field of criteria in a single call.
func (c *EC2Client) DescribeImages(ctx context.Context, criteria entity.ImageCriteria) ([]entity.CatalogImage, error) {
	input := &ec2.DescribeImagesInput{}
	addFilter := func(name, value string) {
		if value != "" {
			input.Filters = append(input.Filters, types.Filter{Name: aws.String(name), Values: []string{value}})
		}
	}
	addFilter("name", criteria.NamePattern)
	addFilter("architecture", criteria.Architecture)
	addFilter("virtualization-type", criteria.VirtualizationClass)
	addFilter("root-device-type", criteria.RootStorageClass)
	if criteria.PublisherID != "" {
		input.Owners = []string{criteria.PublisherID}
	}

	out, err := c.api.DescribeImages(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe images: %w", err)
	}

	images := make([]entity.CatalogImage, 0, len(out.Images))
	for _, img := range out.Images {
		images = append(images, entity.CatalogImage{
			ID:           aws.ToString(img.ImageId),
			CreationDate: aws.ToString(img.CreationDate),
		})
	}
	return images, nil
}

// RunInstance submits req as one RunInstances call. The client token makes
// repeated submissions of the same job collapse into one instance.
func (c *EC2Client) RunInstance(ctx context.Context, req entity.LaunchRequest) (entity.InstanceHandle, error) {
	count := req.Count
	if count < 1 {
		count = 1
	}

	input := &ec2.RunInstancesInput{
		ImageId:                           aws.String(req.ImageID),
		InstanceType:                      types.InstanceType(req.InstanceSize),
		MinCount:                          aws.Int32(count),
		MaxCount:                          aws.Int32(count),
		UserData:                          aws.String(req.BootstrapPayload),
		SubnetId:                          aws.String(req.Placement.SubnetID),
		SecurityGroupIds:                  req.Security.SecurityGroupIDs,
		InstanceInitiatedShutdownBehavior: types.ShutdownBehaviorTerminate,
	}
	if req.Security.InstanceProfile != "" {
		input.IamInstanceProfile = &types.IamInstanceProfileSpecification{Name: aws.String(req.Security.InstanceProfile)}
	}
	if req.Security.KeyName != "" {
		input.KeyName = aws.String(req.Security.KeyName)
	}
	if req.ClientToken != "" {
		input.ClientToken = aws.String(req.ClientToken)
	}
	if len(req.Tags) > 0 {
		input.TagSpecifications = []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         toEC2Tags(req.Tags),
		}}
	}

	out, err := c.api.RunInstances(ctx, input)
	if err != nil {
		return entity.InstanceHandle{}, fmt.Errorf("failed to run instances: %w", err)
	}
	if len(out.Instances) == 0 {
		return entity.InstanceHandle{}, fmt.Errorf("run instances returned no instance")
	}

	inst := out.Instances[0]
	handle := entity.InstanceHandle{
		InstanceID: aws.ToString(inst.InstanceId),
		ImageID:    aws.ToString(inst.ImageId),
		LaunchedAt: time.Now().UTC(),
	}
	if inst.LaunchTime != nil {
		handle.LaunchedAt = *inst.LaunchTime
	}
	return handle, nil
}

func toEC2Tags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
