package pipeline

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// ResolveRecipients turns a recipient id into a deduplicated list of device tokens.
//
// A specific id resolves to at most one token; a missing document or a document
// without a token resolves to an empty list rather than an error. An empty id or
// the "all" sentinel enumerates the whole directory. Tokens keep the order in
// which they were first seen.
func ResolveRecipients(ctx context.Context, directory dispatch.UserDirectory, recipientID string) ([]string, error) {
	if !isBroadcast(recipientID) {
		user, err := directory.Get(ctx, recipientID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up recipient %q: %w", recipientID, err)
		}
		if user == nil || user.DeviceToken == "" {
			return []string{}, nil
		}
		return []string{user.DeviceToken}, nil
	}

	users, err := directory.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate recipients: %w", err)
	}

	seen := make(map[string]struct{}, len(users))
	tokens := make([]string, 0, len(users))
	for _, user := range users {
		if user.DeviceToken == "" {
			continue
		}
		if _, dup := seen[user.DeviceToken]; dup {
			continue
		}
		seen[user.DeviceToken] = struct{}{}
		tokens = append(tokens, user.DeviceToken)
	}
	return tokens, nil
}
