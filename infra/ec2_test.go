package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

type fakeEC2 struct {
	describeIn *ec2.DescribeImagesInput
	runIn      *ec2.RunInstancesInput
	images     []types.Image
	runOut     *ec2.RunInstancesOutput
	err        error
}

func (f *fakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.describeIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

func (f *fakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.runIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.runOut, nil
}

func filterValues(filters []types.Filter) map[string][]string {
	out := map[string][]string{}
	for _, f := range filters {
		out[aws.ToString(f.Name)] = f.Values
	}
	return out
}

func TestDescribeImagesBuildsFilters(t *testing.T) {
	api := &fakeEC2{images: []types.Image{
		{ImageId: aws.String("ami-1"), CreationDate: aws.String("2024-01-01T00:00:00.000Z")},
		{ImageId: aws.String("ami-2")},
	}}
	client := NewEC2Client(api)

	images, err := client.DescribeImages(context.Background(), entity.ImageCriteria{
		NamePattern:         "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*",
		Architecture:        "x86_64",
		VirtualizationClass: "hvm",
		RootStorageClass:    "ebs",
		PublisherID:         "099720109477",
	})
	require.NoError(t, err)

	assert.Equal(t, []entity.CatalogImage{
		{ID: "ami-1", CreationDate: "2024-01-01T00:00:00.000Z"},
		{ID: "ami-2", CreationDate: ""},
	}, images)
	assert.Equal(t, []string{"099720109477"}, api.describeIn.Owners)
	assert.Equal(t, map[string][]string{
		"name":                {"ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"},
		"architecture":        {"x86_64"},
		"virtualization-type": {"hvm"},
		"root-device-type":    {"ebs"},
	}, filterValues(api.describeIn.Filters))
}

func TestRunInstanceMapsRequest(t *testing.T) {
	launched := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeEC2{runOut: &ec2.RunInstancesOutput{Instances: []types.Instance{
		{InstanceId: aws.String("i-abc"), ImageId: aws.String("ami-1"), LaunchTime: &launched},
	}}}
	client := NewEC2Client(api)

	handle, err := client.RunInstance(context.Background(), entity.LaunchRequest{
		ImageID:          "ami-1",
		InstanceSize:     "t3.small",
		BootstrapPayload: "IyEvYmluL2Jhc2g=",
		Placement:        entity.NetworkPlacement{SubnetID: "subnet-1"},
		Security:         entity.SecurityBinding{SecurityGroupIDs: []string{"sg-1"}, InstanceProfile: "worker", KeyName: "ops"},
		Count:            1,
		ClientToken:      "job-token",
		Tags:             map[string]string{"Name": "dispatch-worker", "JobID": "job-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InstanceHandle{InstanceID: "i-abc", ImageID: "ami-1", LaunchedAt: launched}, handle)

	in := api.runIn
	assert.Equal(t, "ami-1", aws.ToString(in.ImageId))
	assert.Equal(t, types.InstanceType("t3.small"), in.InstanceType)
	assert.Equal(t, int32(1), aws.ToInt32(in.MinCount))
	assert.Equal(t, int32(1), aws.ToInt32(in.MaxCount))
	assert.Equal(t, "IyEvYmluL2Jhc2g=", aws.ToString(in.UserData))
	assert.Equal(t, "subnet-1", aws.ToString(in.SubnetId))
	assert.Equal(t, []string{"sg-1"}, in.SecurityGroupIds)
	assert.Equal(t, "worker", aws.ToString(in.IamInstanceProfile.Name))
	assert.Equal(t, "ops", aws.ToString(in.KeyName))
	assert.Equal(t, "job-token", aws.ToString(in.ClientToken))
	require.Len(t, in.TagSpecifications, 1)
	assert.Equal(t, types.ResourceTypeInstance, in.TagSpecifications[0].ResourceType)
	assert.Equal(t, []types.Tag{
		{Key: aws.String("JobID"), Value: aws.String("job-1")},
		{Key: aws.String("Name"), Value: aws.String("dispatch-worker")},
	}, in.TagSpecifications[0].Tags)
}

func TestRunInstanceErrors(t *testing.T) {
	boom := errors.New("UnauthorizedOperation")
	_, err := NewEC2Client(&fakeEC2{err: boom}).RunInstance(context.Background(), entity.LaunchRequest{ImageID: "ami-1"})
	assert.ErrorIs(t, err, boom)

	_, err = NewEC2Client(&fakeEC2{runOut: &ec2.RunInstancesOutput{}}).RunInstance(context.Background(), entity.LaunchRequest{ImageID: "ami-1"})
	assert.Error(t, err)
}
