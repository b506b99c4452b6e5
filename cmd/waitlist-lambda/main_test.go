package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

type fakeRunner struct {
	got waitlist.Trigger
	err error
}

func (f *fakeRunner) Run(_ context.Context, trig waitlist.Trigger) (*waitlist.RunResult, error) {
	f.got = trig
	if f.err != nil {
		return nil, f.err
	}
	return &waitlist.RunResult{Evaluated: 3, Matched: []uuid.UUID{uuid.New()}}, nil
}

func TestHandleScheduledSweep(t *testing.T) {
	r := &fakeRunner{}
	res, err := handle(context.Background(), r, awsevents.CloudWatchEvent{ID: "evt-1", DetailType: "Scheduled Event", Detail: json.RawMessage(`{}`)}, logging.New("error"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Evaluated)
	assert.Equal(t, waitlist.Trigger{Reason: "scheduled"}, r.got)
}

func TestHandleNarrowedByDetail(t *testing.T) {
	r := &fakeRunner{}
	detail := json.RawMessage(`{"specialty":"Cardiology","reason":"nightly"}`)
	_, err := handle(context.Background(), r, awsevents.CloudWatchEvent{Detail: detail}, logging.New("error"))
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", r.got.Specialty)
	assert.Equal(t, "nightly", r.got.Reason)
}

func TestHandleErrors(t *testing.T) {
	_, err := handle(context.Background(), &fakeRunner{}, awsevents.CloudWatchEvent{Detail: json.RawMessage(`{"specialty":`)}, logging.New("error"))
	assert.Error(t, err)

	_, err = handle(context.Background(), &fakeRunner{err: errors.New("directory down")}, awsevents.CloudWatchEvent{}, logging.New("error"))
	assert.EqualError(t, err, "directory down")
}
