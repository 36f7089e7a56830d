package llmChat

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// AudioClip is a stored recording or synthesized answer.
type AudioClip struct {
	Data     []byte
	MIMEType string
}

// AudioStore keeps clips addressable by an opaque reference until they
// expire.
type AudioStore struct {
	clips *cache.Cache
}

func NewAudioStore(ttl time.Duration) *AudioStore {
	return &AudioStore{clips: cache.New(ttl, 2*ttl)}
}

// Put stores data and returns its reference.
func (a *AudioStore) Put(data []byte, mimeType string) string {
	ref := uuid.NewString()
	a.clips.SetDefault(ref, AudioClip{Data: data, MIMEType: mimeType})
	return ref
}

func (a *AudioStore) Get(ref string) (AudioClip, bool) {
	v, ok := a.clips.Get(ref)
	if !ok {
		return AudioClip{}, false
	}
	return v.(AudioClip), true
}
