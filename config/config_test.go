package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, StorePebble, c.Store.Driver)
	assert.Equal(t, NotifierLocal, c.Notifier.Driver)
	assert.Equal(t, "CHATS", c.Notifier.StreamName)
	assert.Equal(t, 256, c.Chat.SubscriptionBuffer)
	assert.False(t, c.Chat.StrictClassify)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairchat.yaml")
	yml := `
server:
  addr: ":9090"
store:
  driver: postgres
  database_url: postgres://chat@localhost/chat
notifier:
  driver: nats
chat:
  strict_classify: true
auth:
  jwt_secret: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CHAT_SUBSCRIPTION_BUFFER", "32")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, StorePostgres, c.Store.Driver)
	assert.Equal(t, NotifierNats, c.Notifier.Driver)
	assert.True(t, c.Chat.StrictClassify)
	assert.Equal(t, "from-env", c.Auth.JWTSecret)
	assert.Equal(t, 32, c.Chat.SubscriptionBuffer)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	c := Default()
	c.Auth.JWTSecret = "x"
	c.Store.Driver = "redis"
	assert.ErrorContains(t, c.Validate(), "unknown store driver")

	c = Default()
	c.Auth.JWTSecret = "x"
	c.Notifier.Driver = "kafka"
	assert.ErrorContains(t, c.Validate(), "unknown notifier driver")

	c = Default()
	c.Auth.JWTSecret = "x"
	c.Store.Driver = StorePostgres
	assert.ErrorContains(t, c.Validate(), "DATABASE_URL")
}

func TestLoadRejectsBadBool(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("CHAT_STRICT_CLASSIFY", "maybe")

	_, err := Load()
	assert.ErrorContains(t, err, "CHAT_STRICT_CLASSIFY")
}
