package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSecrets struct {
	calls  int
	values map[string]string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &v}, nil
}

func TestGetSecretCaches(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{"backoffice/DB_CREDENTIALS": `{"username":"app","password":"s3cret"}`}}
	client := &SecretsClient{client: api, cache: map[string]string{}}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	require.NoError(t, client.GetJSONSecret(context.Background(), "backoffice/DB_CREDENTIALS", &creds))
	require.NoError(t, client.GetJSONSecret(context.Background(), "backoffice/DB_CREDENTIALS", &creds))

	assert.Equal(t, "app", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)
	assert.Equal(t, 1, api.calls)

	_, err := client.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{client: api, namespace: "Test", enabled: true}

	require.NoError(t, m.RecordCount(context.Background(), MetricInventoryReserved, map[string]string{"Warehouse": "WH-B", "Service": "backoffice"}))
	require.Len(t, api.inputs, 1)

	datum := api.inputs[0].MetricData[0]
	assert.Equal(t, MetricInventoryReserved, *datum.MetricName)
	assert.Equal(t, 1.0, *datum.Value)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, "Service", *datum.Dimensions[0].Name)
	assert.Equal(t, "Warehouse", *datum.Dimensions[1].Name)

	m.enabled = false
	require.NoError(t, m.RecordCount(context.Background(), MetricInventoryReserved, nil))
	assert.Len(t, api.inputs, 1)
}

type fakeSNS struct {
	last *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.last = in
	return &sns.PublishOutput{}, nil
}

func TestSNSPublish(t *testing.T) {
	api := &fakeSNS{}
	client := &SNSClient{client: api}

	require.NoError(t, client.Publish(context.Background(), "arn:aws:sns:eu-west-1:000000000000:backoffice", []byte(`{"x":1}`), map[string]string{"event_type": "order.confirmed"}))
	assert.Equal(t, `{"x":1}`, *api.last.Message)
	assert.Equal(t, "order.confirmed", *api.last.MessageAttributes["event_type"].StringValue)

	assert.Error(t, client.Publish(context.Background(), "", nil, nil))
}

type fakeSQS struct {
	last *sqs.SendMessageInput
	urls map[string]string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.last = in
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	url, ok := f.urls[*in.QueueName]
	if !ok {
		return nil, errors.New("AWS.SimpleQueueService.NonExistentQueue")
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: &url}, nil
}

func TestSQSSend(t *testing.T) {
	api := &fakeSQS{urls: map[string]string{"backoffice-events": "http://localhost:4566/000000000000/backoffice-events"}}
	client := &SQSClient{client: api}

	assert.Error(t, client.Send(context.Background(), []byte(`{}`), nil))

	require.NoError(t, client.ResolveQueueURL(context.Background(), "backoffice-events"))
	require.NoError(t, client.Send(context.Background(), []byte(`{"x":1}`), map[string]string{"event_type": "inventory.low_stock"}))
	assert.Equal(t, "http://localhost:4566/000000000000/backoffice-events", *api.last.QueueUrl)
	assert.Equal(t, `{"x":1}`, *api.last.MessageBody)
	assert.Equal(t, "inventory.low_stock", *api.last.MessageAttributes["event_type"].StringValue)

	require.NoError(t, client.ResolveQueueURL(context.Background(), "https://sqs.eu-west-1.amazonaws.com/1/q"))
	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/1/q", client.queueURL)
	assert.Error(t, client.ResolveQueueURL(context.Background(), "missing"))
}

func TestLoadAWSConfigUsesStaticCredentialsForCustomEndpoint(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	cfg, err := LoadAWSConfig(context.Background(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
}
