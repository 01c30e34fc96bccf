package fault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivansh/dsm/internal/coherence"
)

type fakeRequester struct {
	writeRequestCalls []int
	replyData         []byte
	readReplyErr      error
	writeRequestErr   error
}

func (f *fakeRequester) WriteRequest(page int) error {
	f.writeRequestCalls = append(f.writeRequestCalls, page)

	return f.writeRequestErr
}

func (f *fakeRequester) ReadReply(size int) ([]byte, error) {
	if f.readReplyErr != nil {
		return nil, f.readReplyErr
	}

	return f.replyData, nil
}

type fakePager struct {
	pageSize  int
	writtenTo int
	written   []byte
	writeErr  error
}

func (f *fakePager) PageSize() int { return f.pageSize }

func (f *fakePager) WritePage(page int, data []byte) error {
	f.writtenTo = page
	f.written = data

	return f.writeErr
}

type fakeTable struct {
	mode          coherence.Mode
	transitions   []coherence.Mode
	transitionErr error
	locked        bool
}

func (f *fakeTable) Lock(p int)   { f.locked = true }
func (f *fakeTable) Unlock(p int) { f.locked = false }
func (f *fakeTable) Mode(p int) coherence.Mode {
	return f.mode
}

func (f *fakeTable) Transition(p int, mode coherence.Mode) error {
	f.transitions = append(f.transitions, mode)
	f.mode = mode

	return f.transitionErr
}

func TestEnsureWritableAlreadyOwnedTouchesNoTransport(t *testing.T) {
	req := &fakeRequester{}
	pager := &fakePager{pageSize: 8}
	table := &fakeTable{mode: coherence.Write}

	h := New(req, pager, table)

	require.NoError(t, h.EnsureWritable(3))

	assert.Empty(t, req.writeRequestCalls)
	assert.Empty(t, table.transitions)
}

func TestEnsureWritablePullsFromPeer(t *testing.T) {
	req := &fakeRequester{replyData: []byte("abcdefgh")}
	pager := &fakePager{pageSize: 8}
	table := &fakeTable{mode: coherence.None}

	h := New(req, pager, table)

	require.NoError(t, h.EnsureWritable(3))

	assert.Equal(t, []int{3}, req.writeRequestCalls)
	assert.Equal(t, []coherence.Mode{coherence.Write}, table.transitions)
	assert.Equal(t, 3, pager.writtenTo)
	assert.Equal(t, req.replyData, pager.written)
}

func TestEnsureWritableRequestError(t *testing.T) {
	req := &fakeRequester{writeRequestErr: errors.New("boom")}
	pager := &fakePager{pageSize: 8}
	table := &fakeTable{mode: coherence.None}

	h := New(req, pager, table)

	assert.Error(t, h.EnsureWritable(0))
}

func TestEnsureWritableReplyError(t *testing.T) {
	req := &fakeRequester{readReplyErr: errors.New("boom")}
	pager := &fakePager{pageSize: 8}
	table := &fakeTable{mode: coherence.None}

	h := New(req, pager, table)

	assert.Error(t, h.EnsureWritable(0))
	assert.Empty(t, table.transitions)
}

func TestEnsureWritableTransitionError(t *testing.T) {
	req := &fakeRequester{replyData: []byte("abcdefgh")}
	pager := &fakePager{pageSize: 8}
	table := &fakeTable{mode: coherence.None, transitionErr: errors.New("boom")}

	h := New(req, pager, table)

	assert.Error(t, h.EnsureWritable(0))
}

func TestEnsureWritableWritePageError(t *testing.T) {
	req := &fakeRequester{replyData: []byte("abcdefgh")}
	pager := &fakePager{pageSize: 8, writeErr: errors.New("boom")}
	table := &fakeTable{mode: coherence.None}

	h := New(req, pager, table)

	assert.Error(t, h.EnsureWritable(0))
}
