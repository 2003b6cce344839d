package bot

import (
	"github.com/ellyeware/idiombot/internal/platform/envutil"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// Whitelist holds the user IDs whose uploads skip review and who may run
// moderation commands.
type Whitelist struct {
	ids map[string]struct{}
}

func NewWhitelist(ids []string) Whitelist {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Whitelist{ids: set}
}

func WhitelistFromEnv(log *logger.Logger) Whitelist {
	return NewWhitelist(envutil.GetEnvAsList("EI_UPLOAD_WHITELIST", nil, log))
}

func (w Whitelist) Allows(userID string) bool {
	_, ok := w.ids[userID]
	return ok
}
