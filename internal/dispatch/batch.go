package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	batchtypes "github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/google/uuid"
)

type batchAPI interface {
	SubmitJob(ctx context.Context, params *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
}

// BatchTier submits render work to a container batch execution service. The
// underlying client is created on first use and reused for the rest of the
// process's lifetime.
type BatchTier struct {
	JobQueue      string
	JobDefinition string
	Region        string

	once    sync.Once
	client  batchAPI
	initErr error
}

// NewBatchTier constructs the batch tier. An empty queue or definition leaves
// the tier unconfigured.
func NewBatchTier(jobQueue, jobDefinition, region string) *BatchTier {
	return &BatchTier{
		JobQueue:      jobQueue,
		JobDefinition: jobDefinition,
		Region:        region,
	}
}

func (t *BatchTier) Name() string { return "batch" }

func (t *BatchTier) Configured() bool {
	return strings.TrimSpace(t.JobQueue) != "" && strings.TrimSpace(t.JobDefinition) != ""
}

// Dispatch submits the task with a generated unique job name; success is the
// returned batch job id.
func (t *BatchTier) Dispatch(ctx context.Context, task Task) (string, error) {
	client, err := t.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("batch client init: %w", err)
	}

	jobName := fmt.Sprintf("render-%s-%s", shortID(task.JobID), shortID(uuid.NewString()))
	out, err := client.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(jobName),
		JobQueue:      aws.String(t.JobQueue),
		JobDefinition: aws.String(t.JobDefinition),
		ContainerOverrides: &batchtypes.ContainerOverrides{
			Environment: []batchtypes.KeyValuePair{
				{Name: aws.String("RENDER_JOB_ID"), Value: aws.String(task.JobID)},
				{Name: aws.String("PROJECT_ID"), Value: aws.String(task.ProjectID)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("batch submit: %w", err)
	}
	if out.JobId == nil || *out.JobId == "" {
		return "", fmt.Errorf("batch submit: empty job id")
	}
	return *out.JobId, nil
}

func (t *BatchTier) getClient(ctx context.Context) (batchAPI, error) {
	t.once.Do(func() {
		if t.client != nil {
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(t.Region))
		if err != nil {
			t.initErr = err
			return
		}
		t.client = batch.NewFromConfig(cfg)
	})
	if t.initErr != nil {
		return nil, t.initErr
	}
	return t.client, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ Tier = (*BatchTier)(nil)
