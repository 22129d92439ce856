package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/events"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface in memory, so service
// tests exercise business rules without SQLite. It stores copies; callers
// can never mutate its state through a returned pointer.

type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]model.User
	posts    map[string]model.FoodPost
	chats    map[string]model.Chat
	messages []model.Message
	requests []model.Request

	// failWith, when set, is returned by every method.
	failWith error
	// upserts counts UpsertOnboarding calls that reached the store.
	upserts int
}

var (
	_ repository.UserRepository = (*fakeStore)(nil)
	_ repository.PostRepository = (*fakeStore)(nil)
	_ repository.ChatRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]model.User),
		posts: make(map[string]model.FoodPost),
		chats: make(map[string]model.Chat),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// now returns strictly increasing timestamps so ordering is deterministic.
func (f *fakeStore) now() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.nextID) * time.Second)
}

func (f *fakeStore) UpsertOnboarding(_ context.Context, user *model.User, loc *model.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.upserts++

	stored, ok := f.users[user.ID]
	if !ok {
		stored = model.User{ID: user.ID, Name: user.Name, Email: user.Email, CreatedAt: f.now()}
	}
	stored.Role = user.Role
	stored.UpdatedAt = f.now()

	loc.ID = f.id("loc")
	loc.UserID = user.ID
	l := *loc
	stored.Location = &l
	f.users[user.ID] = stored

	*user = stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeStore) CreatePost(_ context.Context, post *model.FoodPost, loc model.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	post.ID = f.id("post")
	loc.ID = f.id("loc")
	loc.UserID = ""
	post.LocationID = loc.ID
	post.Location = &loc
	post.CreatedAt = f.now()
	post.UpdatedAt = post.CreatedAt
	f.posts[post.ID] = *post
	return nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id string) (*model.FoodPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return &p, nil
}

func (f *fakeStore) ListPosts(_ context.Context, filter repository.PostFilter) ([]model.FoodPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	result := []model.FoodPost{}
	for _, p := range f.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.DonorID != "" && p.DonorID != filter.DonorID {
			continue
		}
		if bb := filter.BoundingBox; bb != nil {
			lat, lon := p.Location.Latitude, p.Location.Longitude
			if lat < bb.LatMin || lat > bb.LatMax || lon < bb.LonMin || lon > bb.LonMax {
				continue
			}
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (f *fakeStore) ListDonorHistory(ctx context.Context, donorID string) ([]model.FoodPost, error) {
	posts, err := f.ListPosts(ctx, repository.PostFilter{DonorID: donorID})
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range posts {
		for _, r := range f.requests {
			if r.PostID == posts[i].ID {
				posts[i].Requests = append(posts[i].Requests, r)
			}
		}
	}
	return posts, nil
}

func (f *fakeStore) FindChatForParticipant(_ context.Context, postID, userID string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, c := range f.chats {
		if c.PostID == postID && isMember(c, userID) {
			return f.withMessages(c), nil
		}
	}
	return nil, apperror.NotFound("chat for post", postID)
}

func (f *fakeStore) FindOrCreateChat(_ context.Context, chat *model.Chat, seed string) (*model.Chat, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, false, f.failWith
	}
	for _, c := range f.chats {
		if c.PostID == chat.PostID && c.DonorID == chat.DonorID && c.ReceiverID == chat.ReceiverID {
			return f.withMessages(c), false, nil
		}
	}
	c := *chat
	c.ID = f.id("chat")
	c.CreatedAt = f.now()
	c.Donor = model.Participant{ID: c.DonorID, Name: f.users[c.DonorID].Name}
	c.Receiver = model.Participant{ID: c.ReceiverID, Name: f.users[c.ReceiverID].Name}
	f.chats[c.ID] = c
	f.messages = append(f.messages, model.Message{
		ID: f.id("msg"), ChatID: c.ID, SenderID: c.ReceiverID, Content: seed, CreatedAt: f.now(),
	})
	return f.withMessages(c), true, nil
}

func isMember(c model.Chat, userID string) bool {
	return userID != "" && (c.DonorID == userID || c.ReceiverID == userID)
}

func (f *fakeStore) GetChatForMember(_ context.Context, chatID, userID string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	c, ok := f.chats[chatID]
	if !ok || !isMember(c, userID) {
		return nil, apperror.NotFoundMessage("chat not found or unauthorized")
	}
	return f.withMessages(c), nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	msg.ID = f.id("msg")
	msg.CreatedAt = f.now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, chatID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messagesOf(chatID), nil
}

// withMessages must be called with mu held.
func (f *fakeStore) withMessages(c model.Chat) *model.Chat {
	c.Messages = f.messagesOf(c.ID)
	return &c
}

func (f *fakeStore) messagesOf(chatID string) []model.Message {
	out := []model.Message{}
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// seedUser stores an onboarded user directly.
func (f *fakeStore) seedUser(id string, role model.Role, lat, lon float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = model.User{
		ID: id, Role: role, Name: id,
		Location: &model.Location{ID: "loc-" + id, UserID: id, Latitude: lat, Longitude: lon, Address: id + " street"},
	}
}

// seedPost stores an AVAILABLE post of donorID at (lat, lon).
func (f *fakeStore) seedPost(donorID string, lat, lon float64) model.FoodPost {
	post := &model.FoodPost{Title: "food", Description: "d", Quantity: "1", Status: model.PostAvailable, DonorID: donorID}
	if err := f.CreatePost(context.Background(), post, model.Location{Latitude: lat, Longitude: lon}); err != nil {
		panic(err)
	}
	return *post
}

// =========================================================================
// FAKE LOCKER / PUBLISHER
// =========================================================================

type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	held     int
	failWith error
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.keys = append(l.keys, key)
	l.held++
	return func() {
		l.mu.Lock()
		l.held--
		l.mu.Unlock()
	}, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []events.Event
	failWith error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
