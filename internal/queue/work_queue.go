// Package queue provides the SQS-backed work queue that carries Reports
// fetch windows to downstream consumers and reports its depth to the
// scheduler's backpressure gate.
package queue

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"reportpoller/internal/config"
	"reportpoller/internal/types"
)

//go:embed workitem.schema.json
var workItemSchemaJSON []byte

const workItemSchemaURL = "https://reportpoller/schemas/workitem.schema.json"

// SQSClient abstracts the SQS operations used by WorkQueue for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// WorkQueue serializes work items and sends them to a single SQS queue.
// Every item is checked against the embedded work-item contract before it is
// sent so a malformed window never reaches a consumer.
type WorkQueue struct {
	client       SQSClient
	queueURL     string
	base64Encode bool
	schema       *jsonschema.Schema
}

// NewWorkQueue creates a WorkQueue for the configured queue URL.
func NewWorkQueue(client SQSClient, cfg config.QueueConfig) (*WorkQueue, error) {
	schema, err := compileWorkItemSchema()
	if err != nil {
		return nil, err
	}
	return &WorkQueue{
		client:       client,
		queueURL:     cfg.URL,
		base64Encode: cfg.Base64Encode,
		schema:       schema,
	}, nil
}

func compileWorkItemSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(workItemSchemaURL, bytes.NewReader(workItemSchemaJSON)); err != nil {
		return nil, fmt.Errorf("queue: add work item schema: %w", err)
	}
	schema, err := compiler.Compile(workItemSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("queue: compile work item schema: %w", err)
	}
	return schema, nil
}

// Validate checks item against the work-item contract and that the window
// is non-empty.
func (q *WorkQueue) Validate(item types.WorkItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationWorkItem, "failed to marshal work item", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.NewAppError(types.ErrCodeValidationWorkItem, "failed to decode work item", err)
	}
	if err := q.schema.Validate(payload); err != nil {
		return types.NewAppError(types.ErrCodeValidationWorkItem, "work item violates contract", err).
			WithDetails(map[string]any{"activity": string(item.Activity)})
	}

	start, err := types.ParseTimestamp(item.StartTime)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationTimestamp, "invalid start_time", err)
	}
	end, err := types.ParseTimestamp(item.EndTime)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationTimestamp, "invalid end_time", err)
	}
	if !start.Before(end) {
		return types.NewAppError(types.ErrCodeValidationWorkItem, "work item window is empty", nil).
			WithDetails(map[string]any{
				"start_time": item.StartTime,
				"end_time":   item.EndTime,
			})
	}
	return nil
}

// Send validates item and enqueues it. The body is the item's JSON, base64
// wrapped when configured. The invocation ID from ctx, if any, travels as a
// message attribute.
func (q *WorkQueue) Send(ctx context.Context, item types.WorkItem) error {
	if err := q.Validate(item); err != nil {
		return err
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationWorkItem, "failed to marshal work item", err)
	}
	body := string(raw)
	if q.base64Encode {
		body = base64.StdEncoding.EncodeToString(raw)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"activity": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(item.Activity)),
		},
	}
	if id := types.GetInvocationID(ctx); id != "" {
		attrs["invocation_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(id),
		}
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalQueue, "failed to send work item", err).
			WithDetails(map[string]any{"queue_url": q.queueURL})
	}

	types.LoggerFromContext(ctx).DebugContext(ctx, "work item sent",
		"message_id", aws.ToString(out.MessageId),
		"activity", string(item.Activity),
		"start_time", item.StartTime,
		"end_time", item.EndTime,
	)
	return nil
}

// ApproximateCount returns the queue's ApproximateNumberOfMessages.
func (q *WorkQueue) ApproximateCount(ctx context.Context) (int, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
		AttributeNames: []sqsTypes.QueueAttributeName{
			sqsTypes.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalQueue, "failed to read queue attributes", err).
			WithDetails(map[string]any{"queue_url": q.queueURL})
	}

	raw, ok := out.Attributes[string(sqsTypes.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, types.NewAppError(types.ErrCodeInternalQueue, "queue attributes missing ApproximateNumberOfMessages", nil)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalQueue, "invalid ApproximateNumberOfMessages", err).
			WithDetails(map[string]any{"value": raw})
	}
	return n, nil
}
