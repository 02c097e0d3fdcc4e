package mpris

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/satvikx/beats/internal/app/player"
	"github.com/satvikx/beats/internal/domain/track"
)

func TestMetadataFor(t *testing.T) {
	snap := player.Snapshot{
		Current: &track.Track{
			ID:           "abc-123",
			Title:        "Midnight Study",
			Artist:       "Chill Collective",
			ThumbnailURL: "https://img.example/abc123.jpg",
		},
		Duration: 214 * time.Second,
	}

	metadata := metadataFor(snap)

	assert.Equal(t, dbus.MakeVariant(dbus.ObjectPath("/com/github/satvikx/beats/track/abc_123")), metadata["mpris:trackid"])
	assert.Equal(t, dbus.MakeVariant("Midnight Study"), metadata["xesam:title"])
	assert.Equal(t, dbus.MakeVariant([]string{"Chill Collective"}), metadata["xesam:artist"])
	assert.Equal(t, dbus.MakeVariant(int64(214_000_000)), metadata["mpris:length"])
	assert.Equal(t, dbus.MakeVariant("https://img.example/abc123.jpg"), metadata["mpris:artUrl"])
}

func TestMetadataForIdle(t *testing.T) {
	metadata := metadataFor(player.Snapshot{})

	assert.Equal(t, dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")), metadata["mpris:trackid"])
	assert.NotContains(t, metadata, "xesam:title")
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc123", "abc123"},
		{"abc-123", "abc_123"},
		{"a.b/c d", "a_b_c_d"},
		{"ID_ok", "ID_ok"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizePathComponent(tt.input))
	}
}
