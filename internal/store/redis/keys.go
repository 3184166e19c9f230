package redis

import "fmt"

const (
	// KeyPrefixBookmark is the prefix for bookmark row keys
	KeyPrefixBookmark = "shelf:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner ordering indexes
	KeyPrefixOwner = "shelf:owner:"
	// KeyPrefixSession is the prefix for browser session tokens
	KeyPrefixSession = "shelf:session:"
	// KeyPrefixOAuthState is the prefix for pending OAuth states
	KeyPrefixOAuthState = "shelf:oauth:"

	// ChannelPrefixChanges is the Pub/Sub prefix of per-owner change feeds
	ChannelPrefixChanges = "bookmarks:uid:"
	// ChannelPrefixAuth is the Pub/Sub prefix of per-browser auth events
	ChannelPrefixAuth = "auth:sid:"
)

// BookmarkKey returns the Redis key for a bookmark row
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerBookmarksKey returns the sorted set of an owner's bookmark IDs,
// scored by creation time in milliseconds
func OwnerBookmarksKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":bookmarks"
}

// SessionKey returns the Redis key holding a browser's session token
func SessionKey(sid string) string {
	return KeyPrefixSession + sid
}

// OAuthStateKey returns the Redis key of a pending OAuth state
func OAuthStateKey(state string) string {
	return KeyPrefixOAuthState + state
}

// ChangesChannel returns the change feed channel for an owner
func ChangesChannel(ownerID string) string {
	return ChannelPrefixChanges + ownerID
}

// AuthChannel returns the auth event channel for a browser session
func AuthChannel(sid string) string {
	return ChannelPrefixAuth + sid
}

// ExtractBookmarkID extracts the bookmark ID from a Redis key
func ExtractBookmarkID(key string) (string, error) {
	if len(key) <= len(KeyPrefixBookmark) || key[:len(KeyPrefixBookmark)] != KeyPrefixBookmark {
		return "", fmt.Errorf("invalid bookmark key: %s", key)
	}
	return key[len(KeyPrefixBookmark):], nil
}
