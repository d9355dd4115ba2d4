package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estatechat/chatsync/pkg/api"
)

// fakeService is an in-memory stand-in for the request client, with hooks
// to inject failures and to hold calls open for concurrency tests.
type fakeService struct {
	mu sync.Mutex

	session     *api.Session
	createErr   error
	createCalls int
	createHold  chan struct{}

	sendResp  *api.SendMessageResponse
	sendErr   error
	sendCalls int

	fetchPage  *api.MessagesPage
	fetchErrs  []error
	fetchCalls int
	fetchHold  chan struct{}

	deleteErr   error
	deleteCalls int
}

var _ Service = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{
		sendResp: &api.SendMessageResponse{
			MessageID: "reply-1",
			Response:  "How can I help?",
			Intent:    "greeting",
		},
	}
}

func (f *fakeService) CreateSession(ctx context.Context, lang string) (*api.Session, error) {
	f.mu.Lock()
	f.createCalls++
	hold := f.createHold
	err := f.createErr
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}

	session := &api.Session{
		ID:        "session-" + uuid.NewString(),
		Status:    api.SessionActive,
		Language:  lang,
		CreatedAt: time.Now(),
	}

	f.mu.Lock()
	f.session = session
	f.mu.Unlock()

	s := *session
	return &s, nil
}

func (f *fakeService) GetSession(ctx context.Context, sessionID string) (*api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil || f.session.ID != sessionID {
		return nil, &api.Error{Status: 404, Code: api.CodeSessionNotFound, Message: "not found"}
	}
	s := *f.session
	return &s, nil
}

func (f *fakeService) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.session = nil
	return nil
}

func (f *fakeService) SendMessage(ctx context.Context, sessionID, content, lang string) (*api.SendMessageResponse, error) {
	f.mu.Lock()
	f.sendCalls++
	err := f.sendErr
	resp := f.sendResp
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	r := *resp
	r.SessionID = sessionID
	r.Language = lang
	return &r, nil
}

func (f *fakeService) FetchMessages(ctx context.Context, sessionID string) (*api.MessagesPage, error) {
	f.mu.Lock()
	f.fetchCalls++
	hold := f.fetchHold
	var err error
	if len(f.fetchErrs) > 0 {
		err = f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
	}
	page := f.fetchPage
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &api.MessagesPage{SessionID: sessionID}, nil
	}
	p := *page
	return &p, nil
}

func (f *fakeService) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func (f *fakeService) fetchedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeService) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}
