package main

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hafizmfadli/go-review/internal/data"
)

// memDB is an in-memory stand-in for the PostgreSQL schema. It reproduces
// the behaviour the handlers rely on: unique keys, versions, cascades and
// the computed title rating.
type memDB struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]data.User
	terms    map[string]map[int64]data.Term
	titles   map[int64]memTitle
	reviews  map[int64]data.Review
	comments map[int64]data.Comment
}

type memTitle struct {
	data.Title
	categoryID int64
	genreIDs   []int64
}

func newMemDB() *memDB {
	return &memDB{
		users: make(map[int64]data.User),
		terms: map[string]map[int64]data.Term{
			"categories": make(map[int64]data.Term),
			"genres":     make(map[int64]data.Term),
		},
		titles:   make(map[int64]memTitle),
		reviews:  make(map[int64]data.Review),
		comments: make(map[int64]data.Comment),
	}
}

func (db *memDB) models() data.Models {
	return data.Models{
		Users:      memUsers{db},
		Categories: memTerms{db: db, table: "categories"},
		Genres:     memTerms{db: db, table: "genres"},
		Titles:     memTitles{db},
		Reviews:    memReviews{db},
		Comments:   memComments{db},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// paginate returns the page of items selected by f, ordered by id.
func paginate[T any](items []T, id func(T) int64, f data.Filters) ([]T, data.Metadata) {
	desc := strings.HasPrefix(f.Sort, "-")
	sort.Slice(items, func(i, j int) bool {
		if desc {
			return id(items[i]) > id(items[j])
		}
		return id(items[i]) < id(items[j])
	})

	total := len(items)
	start := (f.Page - 1) * f.PageSize
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return items[start:end], data.CalculateMetadata(total, f.Page, f.PageSize)
}

type memUsers struct{ db *memDB }

func (m memUsers) clash(user *data.User) error {
	for _, u := range m.db.users {
		if u.ID == user.ID {
			continue
		}
		if u.Username == user.Username {
			return data.ErrDuplicateUsername
		}
		if strings.EqualFold(u.Email, user.Email) {
			return data.ErrDuplicateEmail
		}
	}
	return nil
}

func (m memUsers) Insert(user *data.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if err := m.clash(user); err != nil {
		return err
	}
	if user.Role == "" {
		user.Role = data.RoleUser
	}
	user.ID = m.db.id()
	user.CreatedAt = time.Now()
	user.Version = 1
	m.db.users[user.ID] = *user
	return nil
}

func (m memUsers) Get(id int64) (*data.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	u, ok := m.db.users[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	return &u, nil
}

func (m memUsers) GetByUsername(username string) (*data.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, u := range m.db.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memUsers) GetAll(username string, f data.Filters) ([]*data.User, data.Metadata, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	users := []*data.User{}
	for _, u := range m.db.users {
		u := u
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(username)) {
			users = append(users, &u)
		}
	}
	page, meta := paginate(users, func(u *data.User) int64 { return u.ID }, f)
	return page, meta, nil
}

func (m memUsers) Update(user *data.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.users[user.ID]
	if !ok || stored.Version != user.Version {
		return data.ErrEditConflict
	}
	if err := m.clash(user); err != nil {
		return err
	}
	user.Version++
	m.db.users[user.ID] = *user
	return nil
}

func (m memUsers) Delete(id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.users[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.db.users, id)
	for rid, r := range m.db.reviews {
		if r.AuthorID == id {
			m.db.deleteReview(rid)
		}
	}
	for cid, c := range m.db.comments {
		if c.AuthorID == id {
			delete(m.db.comments, cid)
		}
	}
	return nil
}

type memTerms struct {
	db    *memDB
	table string
}

func (m memTerms) rows() map[int64]data.Term {
	return m.db.terms[m.table]
}

func (m memTerms) bySlug(slug string) (data.Term, bool) {
	for _, t := range m.rows() {
		if t.Slug == slug {
			return t, true
		}
	}
	return data.Term{}, false
}

func (m memTerms) Insert(term *data.Term) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.bySlug(term.Slug); ok {
		return data.ErrDuplicateSlug
	}
	term.ID = m.db.id()
	m.rows()[term.ID] = *term
	return nil
}

func (m memTerms) Get(slug string) (*data.Term, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	t, ok := m.bySlug(slug)
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	return &t, nil
}

func (m memTerms) GetAll(search string, f data.Filters) ([]*data.Term, data.Metadata, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	search = strings.ToLower(search)
	terms := []*data.Term{}
	for _, t := range m.rows() {
		t := t
		if strings.Contains(strings.ToLower(t.Name), search) || strings.Contains(strings.ToLower(t.Slug), search) {
			terms = append(terms, &t)
		}
	}
	page, meta := paginate(terms, func(t *data.Term) int64 { return t.ID }, f)
	return page, meta, nil
}

func (m memTerms) Update(term *data.Term) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.rows()[term.ID]; !ok {
		return data.ErrRecordNotFound
	}
	if other, ok := m.bySlug(term.Slug); ok && other.ID != term.ID {
		return data.ErrDuplicateSlug
	}
	m.rows()[term.ID] = *term
	return nil
}

func (m memTerms) Delete(slug string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	t, ok := m.bySlug(slug)
	if !ok {
		return data.ErrRecordNotFound
	}
	delete(m.rows(), t.ID)

	for id, title := range m.db.titles {
		if m.table == "categories" && title.categoryID == t.ID {
			title.categoryID = 0
		}
		if m.table == "genres" {
			kept := title.genreIDs[:0:0]
			for _, gid := range title.genreIDs {
				if gid != t.ID {
					kept = append(kept, gid)
				}
			}
			title.genreIDs = kept
		}
		m.db.titles[id] = title
	}
	return nil
}

type memTitles struct{ db *memDB }

// build assembles the read representation of a stored title.
func (m memTitles) build(mt memTitle) *data.Title {
	title := mt.Title
	title.Category = nil
	if c, ok := m.db.terms["categories"][mt.categoryID]; ok {
		title.Category = &c
	}

	title.Genres = []data.Genre{}
	for _, gid := range mt.genreIDs {
		if g, ok := m.db.terms["genres"][gid]; ok {
			title.Genres = append(title.Genres, g)
		}
	}
	sort.Slice(title.Genres, func(i, j int) bool { return title.Genres[i].Name < title.Genres[j].Name })

	title.Rating = nil
	sum, n := 0, 0
	for _, r := range m.db.reviews {
		if r.TitleID == mt.ID {
			sum += r.Score
			n++
		}
	}
	if n > 0 {
		rating := float64(sum) / float64(n)
		title.Rating = &rating
	}
	return &title
}

func (m memTitles) store(title *data.Title) error {
	mt := memTitle{Title: *title, genreIDs: title.GenreIDs()}
	if title.Category != nil {
		if _, ok := m.db.terms["categories"][title.Category.ID]; !ok {
			return data.ErrRecordNotFound
		}
		mt.categoryID = title.Category.ID
	}
	for _, gid := range mt.genreIDs {
		if _, ok := m.db.terms["genres"][gid]; !ok {
			return data.ErrRecordNotFound
		}
	}
	m.db.titles[title.ID] = mt
	return nil
}

func (m memTitles) Insert(title *data.Title) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	title.ID = m.db.id()
	title.Version = 1
	return m.store(title)
}

func (m memTitles) Get(id int64) (*data.Title, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	mt, ok := m.db.titles[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	return m.build(mt), nil
}

func (m memTitles) matches(t *data.Title, s data.TitleSearch) bool {
	switch s.Field {
	case data.SearchGenre:
		for _, g := range t.Genres {
			if g.Slug == s.Term {
				return true
			}
		}
		return false
	case data.SearchCategory:
		return t.Category != nil && t.Category.Slug == s.Term
	case data.SearchYear:
		year, _ := strconv.Atoi(s.Term)
		return int(t.Year) == year
	case data.SearchName:
		return t.Name == s.Term
	default:
		text := strings.ToLower(t.Name + " " + t.Description)
		for _, word := range strings.Fields(strings.ToLower(s.Term)) {
			if !strings.Contains(text, word) {
				return false
			}
		}
		return true
	}
}

func (m memTitles) GetAll(search data.TitleSearch, f data.Filters) ([]*data.Title, data.Metadata, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	titles := []*data.Title{}
	for _, mt := range m.db.titles {
		if t := m.build(mt); m.matches(t, search) {
			titles = append(titles, t)
		}
	}
	page, meta := paginate(titles, func(t *data.Title) int64 { return t.ID }, f)
	return page, meta, nil
}

func (m memTitles) Update(title *data.Title) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.titles[title.ID]
	if !ok || stored.Version != title.Version {
		return data.ErrEditConflict
	}
	title.Version++
	if err := m.store(title); err != nil {
		title.Version--
		return err
	}
	return nil
}

func (m memTitles) Delete(id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.titles[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.db.titles, id)
	for rid, r := range m.db.reviews {
		if r.TitleID == id {
			m.db.deleteReview(rid)
		}
	}
	return nil
}

// deleteReview removes a review and its comments. The caller holds mu.
func (db *memDB) deleteReview(id int64) {
	delete(db.reviews, id)
	for cid, c := range db.comments {
		if c.ReviewID == id {
			delete(db.comments, cid)
		}
	}
}

type memReviews struct{ db *memDB }

func (m memReviews) Insert(review *data.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.titles[review.TitleID]; !ok {
		return data.ErrRecordNotFound
	}
	author, ok := m.db.users[review.AuthorID]
	if !ok {
		return data.ErrRecordNotFound
	}
	for _, r := range m.db.reviews {
		if r.TitleID == review.TitleID && r.AuthorID == review.AuthorID {
			return data.ErrDuplicateReview
		}
	}
	review.ID = m.db.id()
	review.Author = author.Username
	review.PubDate = time.Now()
	m.db.reviews[review.ID] = *review
	return nil
}

func (m memReviews) Get(titleID, id int64) (*data.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	r, ok := m.db.reviews[id]
	if !ok || r.TitleID != titleID {
		return nil, data.ErrRecordNotFound
	}
	return &r, nil
}

func (m memReviews) GetAll(titleID int64, f data.Filters) ([]*data.Review, data.Metadata, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	reviews := []*data.Review{}
	for _, r := range m.db.reviews {
		r := r
		if r.TitleID == titleID {
			reviews = append(reviews, &r)
		}
	}
	page, meta := paginate(reviews, func(r *data.Review) int64 { return r.ID }, f)
	return page, meta, nil
}

func (m memReviews) Update(review *data.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.reviews[review.ID]
	if !ok {
		return data.ErrRecordNotFound
	}
	stored.Text = review.Text
	stored.Score = review.Score
	m.db.reviews[review.ID] = stored
	return nil
}

func (m memReviews) Delete(id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.reviews[id]; !ok {
		return data.ErrRecordNotFound
	}
	m.db.deleteReview(id)
	return nil
}

type memComments struct{ db *memDB }

func (m memComments) Insert(comment *data.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.reviews[comment.ReviewID]; !ok {
		return data.ErrRecordNotFound
	}
	author, ok := m.db.users[comment.AuthorID]
	if !ok {
		return data.ErrRecordNotFound
	}
	comment.ID = m.db.id()
	comment.Author = author.Username
	comment.PubDate = time.Now()
	m.db.comments[comment.ID] = *comment
	return nil
}

func (m memComments) Get(reviewID, id int64) (*data.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	c, ok := m.db.comments[id]
	if !ok || c.ReviewID != reviewID {
		return nil, data.ErrRecordNotFound
	}
	return &c, nil
}

func (m memComments) GetAll(reviewID int64, f data.Filters) ([]*data.Comment, data.Metadata, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	comments := []*data.Comment{}
	for _, c := range m.db.comments {
		c := c
		if c.ReviewID == reviewID {
			comments = append(comments, &c)
		}
	}
	page, meta := paginate(comments, func(c *data.Comment) int64 { return c.ID }, f)
	return page, meta, nil
}

func (m memComments) Update(comment *data.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.comments[comment.ID]
	if !ok {
		return data.ErrRecordNotFound
	}
	stored.Text = comment.Text
	m.db.comments[comment.ID] = stored
	return nil
}

func (m memComments) Delete(id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, ok := m.db.comments[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.db.comments, id)
	return nil
}
