package moodle

import (
	"context"
	"log"
	"strconv"
	"strings"
)

// Searcher layers user lookup strategies over a web service that has no
// free-text search primitive. Tiers run most-specific first and the next tier
// only runs when the previous one yielded nothing:
//
//  1. exact email
//  2. exact username
//  3. exact numeric id
//  4. (duplicate probe only) exact first/last name cross-filter
//  5. range-scan over the numeric id space with client-side filtering
type Searcher struct {
	client    *Client
	maxUserID int
	scanBatch int
}

func NewSearcher(client *Client, maxUserID, scanBatch int) *Searcher {
	if maxUserID <= 0 {
		maxUserID = 6000
	}
	if scanBatch <= 0 || scanBatch > 1000 {
		scanBatch = 1000
	}
	return &Searcher{client: client, maxUserID: maxUserID, scanBatch: scanBatch}
}

func (s *Searcher) FindByEmail(ctx context.Context, email string) ([]User, error) {
	return s.client.GetUsersByField(ctx, "email", []string{email})
}

func (s *Searcher) FindByUsername(ctx context.Context, username string) ([]User, error) {
	return s.client.GetUsersByField(ctx, "username", []string{username})
}

func (s *Searcher) FindByID(ctx context.Context, id int) ([]User, error) {
	return s.client.GetUsersByField(ctx, "id", []string{strconv.Itoa(id)})
}

// ResolveUsername returns the account matching username exactly, or nil.
func (s *Searcher) ResolveUsername(ctx context.Context, username string) (*User, error) {
	users, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// FindDuplicatesByName catches "same person, different username" accounts:
// exact firstname filtered client-side by lastname, plus the symmetric
// reverse, merged and deduplicated by id.
func (s *Searcher) FindDuplicatesByName(ctx context.Context, firstName, lastName string) ([]User, error) {
	var matches []User

	byFirst, err := s.client.GetUsers(ctx, []Criterion{{Key: "firstname", Value: firstName}})
	if err != nil {
		return nil, err
	}
	for _, u := range byFirst {
		if strings.EqualFold(u.LastName, lastName) {
			matches = append(matches, u)
		}
	}

	byLast, err := s.client.GetUsers(ctx, []Criterion{{Key: "lastname", Value: lastName}})
	if err != nil {
		return nil, err
	}
	for _, u := range byLast {
		if strings.EqualFold(u.FirstName, firstName) {
			matches = append(matches, u)
		}
	}

	return dedupe(matches), nil
}

// Search runs the exact-match tiers and falls back to a range-scan for
// free-text terms. Tier errors are logged and treated as zero results so a
// flaky exact lookup still falls through to the scan.
func (s *Searcher) Search(ctx context.Context, term string, limit int) ([]User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	if strings.Contains(term, "@") {
		users, err := s.FindByEmail(ctx, term)
		if err != nil {
			log.Printf("search: email lookup failed for %q: %v", term, err)
		} else if len(users) > 0 {
			return dedupe(users), nil
		}
	}

	users, err := s.FindByUsername(ctx, term)
	if err != nil {
		log.Printf("search: username lookup failed for %q: %v", term, err)
	} else if len(users) > 0 {
		return dedupe(users), nil
	}

	if id, convErr := strconv.Atoi(term); convErr == nil && id > 0 {
		users, err = s.FindByID(ctx, id)
		if err != nil {
			log.Printf("search: id lookup failed for %d: %v", id, err)
		} else if len(users) > 0 {
			return dedupe(users), nil
		}
	}

	return s.RangeScan(ctx, term, limit)
}

// RangeScan fetches users in fixed id batches tiled across the assumed id
// space and filters client-side by case-insensitive substring. It stops as
// soon as limit matches are collected; cost is O(id-space) in the worst case.
// A match above maxUserID will not be found.
func (s *Searcher) RangeScan(ctx context.Context, term string, limit int) ([]User, error) {
	needle := strings.ToLower(strings.TrimSpace(term))

	var matches []User
	for start := 1; start <= s.maxUserID; start += s.scanBatch {
		end := start + s.scanBatch - 1
		if end > s.maxUserID {
			end = s.maxUserID
		}

		ids := make([]string, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, strconv.Itoa(id))
		}

		batch, err := s.client.GetUsersByField(ctx, "id", ids)
		if err != nil {
			log.Printf("search: range scan batch %d-%d failed: %v", start, end, err)
			continue
		}

		for _, u := range batch {
			if matchesTerm(u, needle) {
				matches = append(matches, u)
				if limit > 0 && len(matches) >= limit {
					return dedupe(matches), nil
				}
			}
		}
	}

	return dedupe(matches), nil
}

// ScanAll walks the whole id space. The sync job uses this because no "list
// all users" function reliably returns rows on this server.
func (s *Searcher) ScanAll(ctx context.Context) ([]User, error) {
	return s.RangeScan(ctx, "", 0)
}

func matchesTerm(u User, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{u.FirstName, u.LastName, u.FullName(), u.Email, u.Username} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func dedupe(users []User) []User {
	seen := make(map[int]bool, len(users))
	out := users[:0]
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}
