package comment

import (
	"context"
	"sort"

	"github.com/hitoshi/commentman/internal/model"
)

// --- テスト用モック ---

// mockCommentRepo はCommentRepositoryのインメモリモック。
type mockCommentRepo struct {
	comments map[int64]*model.Comment
	listFn   func(ctx context.Context, q model.CommentQuery) ([]model.CommentWithArticle, error)
	findFn   func(ctx context.Context, id int64) (*model.CommentWithArticle, error)
	lastList model.CommentQuery
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[int64]*model.Comment)}
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id int64) (*model.CommentWithArticle, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	return &model.CommentWithArticle{Comment: *c}, nil
}

func (m *mockCommentRepo) List(ctx context.Context, q model.CommentQuery) ([]model.CommentWithArticle, error) {
	m.lastList = q
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

func (m *mockCommentRepo) ListStatesByArticle(_ context.Context, articleID int64) (map[int64]bool, error) {
	states := make(map[int64]bool)
	for id, c := range m.comments {
		if c.ArticleID == articleID {
			states[id] = c.Deleted
		}
	}
	return states, nil
}

func (m *mockCommentRepo) Upsert(_ context.Context, c *model.Comment) error {
	cp := *c
	cp.Deleted = false
	m.comments[c.ID] = &cp
	return nil
}

func (m *mockCommentRepo) SetDeleted(_ context.Context, ids []int64, deleted bool) (int64, error) {
	var n int64
	for _, id := range ids {
		if c, ok := m.comments[id]; ok && c.Deleted != deleted {
			c.Deleted = deleted
			n++
		}
	}
	return n, nil
}

func (m *mockCommentRepo) deletedIDs() []int64 {
	var ids []int64
	for id, c := range m.comments {
		if c.Deleted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// mockUserRepo はUserRepositoryのモック。
type mockUserRepo struct {
	users    map[int64]string
	upsertFn func(ctx context.Context, u *model.User) error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]string)}
}

func (m *mockUserRepo) Upsert(ctx context.Context, u *model.User) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, u)
	}
	m.users[u.ID] = u.Name
	return nil
}

// markSanitizer はサニタイズ済みであることを判別できるよう印を付けるモック。
type markSanitizer struct{}

func (markSanitizer) Sanitize(raw string) string { return "[s]" + raw }
