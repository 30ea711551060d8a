package permissions

import (
	"encoding/json"
	"time"

	"github.com/plumeapp/plume/internal/models"
)

// DefaultTTL bounds the staleness window of every authorization cache
// entry. Invalidation is precise, so the TTL only matters when an eviction
// is lost between commit and cache round-trip.
const DefaultTTL = 10 * time.Minute

func userGroupsKey(userID string) string {
	return "user:" + userID + ":groups"
}

func groupParentsKey(groupID string) string {
	return "group:" + groupID + ":parents"
}

// grantKey scopes a cached grant lookup to one post, one user, one lookup
// class (explicit|group) and one permission type, so a permission change on
// a post can evict everything under "permissions:{post}:".
func grantKey(postID, userID, class string, kind models.GrantKind) string {
	return "permissions:" + postID + ":" + userID + ":" + class + "_" + string(kind)
}

// PermissionKeyPrefix is the eviction prefix for all cached grant lookups
// on one post.
func PermissionKeyPrefix(postID string) string {
	return "permissions:" + postID + ":"
}

func encodeStrings(values []string) []byte {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return data
}

func decodeStrings(data []byte) ([]string, bool) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false
	}
	return values, true
}

func encodeBool(v bool) []byte {
	if v {
		return []byte("true")
	}
	return []byte("false")
}

func decodeBool(data []byte) (bool, bool) {
	switch string(data) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
