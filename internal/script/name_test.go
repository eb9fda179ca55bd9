package script

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	version, desc, kind, err := ParseFilename("20240101120000_create_users_table.up.sql")
	require.NoError(t, err)
	assert.Equal(t, int64(20240101120000), version)
	assert.Equal(t, "create users table", desc)
	assert.Equal(t, ReversibleUp, kind)
}

func TestParseFilename_Malformed(t *testing.T) {
	names := []string{
		"readme.md",
		"create_users.sql",
		"20240101120000.sql",
		"20240101120000_.sql",
		"-5_negative.sql",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := ParseFilename(name)
			require.Error(t, err)

			var nameErr *NameError
			require.True(t, errors.As(err, &nameErr))
			assert.Equal(t, name, nameErr.Name)
		})
	}
}

func TestFilename_RoundTrip(t *testing.T) {
	name := Filename(20240101120000, "add orders index", ReversibleDown)
	assert.Equal(t, "20240101120000_add_orders_index.down.sql", name)

	version, desc, kind, err := ParseFilename(name)
	require.NoError(t, err)
	assert.Equal(t, int64(20240101120000), version)
	assert.Equal(t, "add orders index", desc)
	assert.Equal(t, ReversibleDown, kind)
}

func TestFilename_NormalizesUnicode(t *testing.T) {
	// "e" + combining acute accent composes to a single code point.
	decomposed := "cafe\u0301 menu"
	assert.Equal(t, "1_caf\u00e9_menu.sql", Filename(1, decomposed, Simple))
}

func TestVersionAt(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	assert.Equal(t, int64(20240309070502), VersionAt(ts))

	// Non-UTC input is converted before formatting.
	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, int64(20240309120502), VersionAt(time.Date(2024, 3, 9, 7, 5, 2, 0, est)))
}
