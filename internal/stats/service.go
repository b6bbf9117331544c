// Package stats は投稿者とサイトごとのコメント評価の集計を提供する。
package stats

import (
	"context"
	"sort"
	"strings"

	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
)

// StatsService は投稿者ランキングとサイト別集計のサービス。
type StatsService struct {
	statsRepo  repository.StatsRepository
	sites      []model.Site
	cities     map[string]bool
	maxPerPage int
}

// NewStatsService はStatsServiceの新しいインスタンスを生成する。
// sitesは集計対象の都市、maxPerPageはitemsPerPageの上限。
func NewStatsService(
	statsRepo repository.StatsRepository,
	sites []model.Site,
	maxPerPage int,
) *StatsService {
	cities := make(map[string]bool, len(sites))
	for _, s := range sites {
		cities[s.City] = true
	}
	return &StatsService{
		statsRepo:  statsRepo,
		sites:      sites,
		cities:     cities,
		maxPerPage: maxPerPage,
	}
}

// UserListResult はListUsersの戻り値。
type UserListResult struct {
	Users      []model.UserStats
	Pagination model.Pagination
	HasMore    bool
	// Next は次ページを取得するためのクエリ文字列。HasMoreがfalseの場合は空。
	Next string
}

// ListUsers は投稿者ごとの評価の合計をランキング形式で返す。
// orderが未指定の場合はいいね数と低評価数の合計で並べる。
func (s *StatsService) ListUsers(ctx context.Context, p model.Pagination, f model.UserFilters) (*UserListResult, error) {
	if err := p.Validate(s.maxPerPage); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := model.UserQuery{
		Order:  model.OrderByScore,
		Limit:  p.ItemsPerPage + 1,
		Offset: p.Offset(),
	}
	if f.Order != nil {
		q.Order = *f.Order
	}
	if f.City != nil && *f.City != "" {
		city, err := s.city(*f.City)
		if err != nil {
			return nil, err
		}
		q.City = city
	}

	users, err := s.statsRepo.ListUserStats(ctx, q)
	if err != nil {
		return nil, err
	}

	hasMore := len(users) > p.ItemsPerPage
	if hasMore {
		users = users[:p.ItemsPerPage]
	}

	result := &UserListResult{
		Users:      users,
		Pagination: p,
		HasMore:    hasMore,
	}
	if hasMore {
		next := model.Pagination{Page: p.Page + 1, ItemsPerPage: p.ItemsPerPage}
		result.Next = model.NewUsersQuery(next, f).Encode()
	}
	return result, nil
}

// GetUser は投稿者1人の集計値を返す。
func (s *StatsService) GetUser(ctx context.Context, id int64) (*model.UserStats, error) {
	u, err := s.statsRepo.FindUserStats(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return u, nil
}

// ListSites は設定済みの全サイトを集計値付きで返す。
//
// コメントの無いサイトは集計値0で含める。orderがnilの場合は設定順、
// 指定された場合はその集計値の降順で並べる。
func (s *StatsService) ListSites(ctx context.Context, order *model.CommentOrder) ([]model.SiteStats, error) {
	if order != nil && !order.ValidForTotals() {
		return nil, model.NewInvalidFilterError("order=" + string(*order))
	}

	totals, err := s.statsRepo.ListSiteStats(ctx)
	if err != nil {
		return nil, err
	}
	byCity := make(map[string]model.SiteStats, len(totals))
	for _, t := range totals {
		byCity[t.City] = t
	}

	result := make([]model.SiteStats, len(s.sites))
	for i, site := range s.sites {
		st := byCity[site.City]
		st.City = site.City
		st.URL = site.URL
		result[i] = st
	}

	if order != nil {
		key := siteSortKey(*order)
		sort.SliceStable(result, func(i, j int) bool {
			return key(result[i]) > key(result[j])
		})
	}
	return result, nil
}

func siteSortKey(order model.CommentOrder) func(model.SiteStats) int64 {
	switch order {
	case model.OrderByLikes:
		return func(s model.SiteStats) int64 { return s.TotalLikes }
	case model.OrderByDislikes:
		return func(s model.SiteStats) int64 { return s.TotalDislikes }
	default:
		return model.SiteStats.TotalScore
	}
}

// city は都市コードを正規化し、設定済みの都市か検証する。
func (s *StatsService) city(raw string) (string, error) {
	city := strings.ToLower(raw)
	if !s.cities[city] {
		return "", model.NewUnknownCityError(raw)
	}
	return city, nil
}
