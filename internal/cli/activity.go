package cli

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-settings/pkg/activity"
)

// logHook writes settings activity to the command logger.
func logHook(logger *slog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		attrs := []slog.Attr{
			slog.String("verb", event.Verb),
			slog.String("ref", event.Ref),
		}
		if event.ActorID != "" {
			attrs = append(attrs, slog.String("actor", event.ActorID))
		}
		if len(event.Keys) > 0 {
			attrs = append(attrs, slog.Any("keys", event.Keys))
		}
		if event.Scope.ETag != "" {
			attrs = append(attrs, slog.String("etag", event.Scope.ETag))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "settings activity", attrs...)
		return nil
	})
}
