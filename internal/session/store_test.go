package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-chatbot/pkg"
)

type stubChat struct{}

func (stubChat) Send(context.Context, string) (string, error) { return "", nil }

func TestConversationKeepsMostRecent(t *testing.T) {
	for _, n := range []int{0, 1, 3, 5, 12} {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			s := NewStore(5)
			for i := 0; i < n; i++ {
				s.AddMessage("sid", pkg.RoleUser, fmt.Sprintf("m%d", i))
			}
			got := s.Conversation("sid")
			want := n
			if want > 5 {
				want = 5
			}
			require.Len(t, got, want)
			for i, m := range got {
				assert.Equal(t, fmt.Sprintf("m%d", n-want+i), m.Content)
			}
		})
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := NewStore(0)
	for i := 0; i < 25; i++ {
		s.AddMessage("sid", pkg.RoleAssistant, "x")
	}
	assert.Len(t, s.Conversation("sid"), DefaultMaxHistory)
}

func TestConversationIsSnapshot(t *testing.T) {
	s := NewStore(10)
	s.AddMessage("sid", pkg.RoleUser, "hello")
	conv := s.Conversation("sid")
	conv[0].Content = "changed"
	assert.Equal(t, "hello", s.Conversation("sid")[0].Content)
}

func TestGetOrCreateDefaults(t *testing.T) {
	s := NewStore(10)
	assert.True(t, s.GetOrCreate("sid"))
	assert.False(t, s.GetOrCreate("sid"))

	for _, key := range []Key{KeyLastDiagnosis, KeyImageDescription, KeyImageDiseaseList, KeyBase64Image, KeyChatHandle, KeyImageUploaded} {
		_, err := s.Get("sid", key)
		assert.NoError(t, err, key)
	}
	v, _ := s.Get("sid", KeyImageUploaded)
	assert.Equal(t, false, v)
	v, _ = s.Get("sid", KeyLastDiagnosis)
	assert.Equal(t, pkg.Diagnosis{}, v)
}

func TestSetAndGet(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Set("sid", KeyImageDescription, "redness"))
	require.NoError(t, s.Set("sid", KeyImageDiseaseList, []string{"Rosacea"}))
	require.NoError(t, s.Set("sid", KeyLastDiagnosis, pkg.Single("Rosacea")))
	require.NoError(t, s.Set("sid", KeyChatHandle, stubChat{}))
	require.NoError(t, s.Set("sid", KeyImageUploaded, true))

	c := s.Context("sid")
	assert.Equal(t, "redness", c.ImageDescription)
	assert.Equal(t, []string{"Rosacea"}, c.ImageDiseaseList)
	assert.Equal(t, pkg.Single("Rosacea"), c.LastDiagnosis)
	assert.NotNil(t, c.ChatHandle)
	assert.True(t, c.ImageUploaded)

	require.NoError(t, s.Set("sid", KeyImageDescription, nil))
	assert.Empty(t, s.Context("sid").ImageDescription)
}

func TestSetRejectsBadValues(t *testing.T) {
	s := NewStore(10)
	assert.Error(t, s.Set("sid", KeyImageUploaded, "yes"))
	assert.Error(t, s.Set("sid", Key("symptoms"), 1))
	_, err := s.Get("sid", Key("symptoms"))
	assert.Error(t, err)
}

func TestContextIsSnapshot(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Set("sid", KeyImageDiseaseList, []string{"A", "B"}))
	c := s.Context("sid")
	c.ImageDiseaseList[0] = "Z"
	assert.Equal(t, "A", s.Context("sid").ImageDiseaseList[0])
}

func TestClearMatchesFreshSession(t *testing.T) {
	s := NewStore(10)
	s.AddMessage("sid", pkg.RoleUser, "hello")
	require.NoError(t, s.Set("sid", KeyImageDescription, "rash"))
	require.NoError(t, s.Set("sid", KeyLastDiagnosis, pkg.Single("Acne")))

	s.Clear("sid")
	assert.False(t, s.Exists("sid"))
	assert.Equal(t, s.Conversation("fresh"), s.Conversation("sid"))
	assert.Equal(t, s.Context("fresh"), s.Context("sid"))
}

func TestResetChat(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Set("sid", KeyChatHandle, stubChat{}))
	s.ResetChat("sid")
	assert.Nil(t, s.Context("sid").ChatHandle)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < 30; j++ {
				s.AddMessage(id, pkg.RoleUser, id)
				s.Update(id, func(c *Context) { c.ImageDescription = id })
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("s%d", i)
		conv := s.Conversation(id)
		require.Len(t, conv, 30)
		for _, m := range conv {
			assert.Equal(t, id, m.Content)
		}
		assert.Equal(t, id, s.Context(id).ImageDescription)
	}
}

func TestLockSerialisesTurns(t *testing.T) {
	s := NewStore(10)
	unlock := s.Lock("sid")

	done := make(chan struct{})
	go func() {
		release := s.Lock("sid")
		release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second turn acquired the lock while the first held it")
	default:
	}
	unlock()
	<-done
}

func TestClearWaitsForTurnInProgress(t *testing.T) {
	s := NewStore(10)
	unlock := s.Lock("sid")
	s.AddMessage("sid", pkg.RoleUser, "hello")

	cleared := make(chan struct{})
	go func() {
		s.Clear("sid")
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("session cleared while a turn held it")
	case <-time.After(50 * time.Millisecond):
	}

	// the turn still owns its session until it releases the lock
	s.AddMessage("sid", pkg.RoleAssistant, "reply")
	unlock()
	<-cleared

	assert.False(t, s.Exists("sid"))
	assert.Empty(t, s.Conversation("sid"))
	assert.Equal(t, s.Context("fresh"), s.Context("sid"))
}

func TestLockAfterClearSerialisesTurns(t *testing.T) {
	s := NewStore(10)
	unlock := s.Lock("sid")

	cleared := make(chan struct{})
	go func() {
		s.Clear("sid")
		close(cleared)
	}()
	unlock()
	<-cleared

	next := s.Lock("sid")

	done := make(chan struct{})
	go func() {
		release := s.Lock("sid")
		release()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("two turns held the same session")
	case <-time.After(50 * time.Millisecond):
	}
	next()
	<-done
}
