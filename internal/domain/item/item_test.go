package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItem_Playable(t *testing.T) {
	tests := []struct {
		name      string
		mediaURL  string
		available bool
		expected  bool
	}{
		{
			name:      "available with media URL",
			mediaURL:  "https://cdn.example.com/a.mp3?sig=x",
			available: true,
			expected:  true,
		},
		{
			name:      "missing media URL",
			mediaURL:  "",
			available: true,
			expected:  false,
		},
		{
			name:      "hidden by moderation",
			mediaURL:  "https://cdn.example.com/a.mp3?sig=x",
			available: false,
			expected:  false,
		},
		{
			name:      "hidden and no media URL",
			mediaURL:  "",
			available: false,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := Item{
				ID:        "1",
				Kind:      KindSong,
				MediaURL:  tt.mediaURL,
				Available: tt.available,
			}
			assert.Equal(t, tt.expected, i.Playable())
		})
	}
}

func TestItem_Key(t *testing.T) {
	song := Item{ID: "42", Kind: KindSong}
	episode := Item{ID: "42", Kind: KindEpisode}

	assert.Equal(t, "song:42", song.Key())
	assert.Equal(t, "episode:42", episode.Key())
	assert.NotEqual(t, song.Key(), episode.Key())
}
