package services

import "context"

// Notifier delivers best-effort messages to a student. Failures never roll back
// the mutation that triggered them.
type Notifier interface {
	NotifyStudent(ctx context.Context, studentID, text string) error
}

// StatsCache holds serialized month aggregations.
type StatsCache interface {
	Get(ctx context.Context, month string, dst any) (bool, error)
	Set(ctx context.Context, month string, value any) error
	Invalidate(ctx context.Context, months ...string) error
}

// InviteLinkIssuer creates a trackable invite link on the chat platform.
type InviteLinkIssuer interface {
	IssueInviteLink(ctx context.Context, studentID string) (string, error)
}

// Uploader stores generated files and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyStudent(context.Context, string, string) error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any) error { return nil }
func (nopCache) Invalidate(context.Context, ...string) error { return nil }
