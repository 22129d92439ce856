package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `
	p.id, p.title, p.description, p.quantity, p.expiry_date, p.status,
	p.donor_id, p.location_id, p.created_at, p.updated_at,
	l.id, l.latitude, l.longitude, l.address, l.created_at,
	u.id, u.name, u.email`

const postJoins = `
	FROM food_posts p
	JOIN locations l ON l.id = p.location_id
	JOIN users u ON u.id = p.donor_id`

// CreatePost inserts the post and a private copy of loc in one transaction.
//
// The copy (user_id NULL) pins the pickup address at posting time: if the
// donor later moves, existing posts keep pointing at where the food is.
func (db *DB) CreatePost(ctx context.Context, post *model.FoodPost, loc model.Location) error {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning create post tx: %w", err)
	}
	defer rollback(tx)

	locID := xid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO locations (id, user_id, latitude, longitude, address, created_at)
		 VALUES (?, NULL, ?, ?, ?, ?)`,
		locID, loc.Latitude, loc.Longitude, loc.Address, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: copying location for post: %w", err)
	}

	post.ID = xid.New().String()
	post.LocationID = locID
	if post.Status == "" {
		post.Status = model.PostAvailable
	}
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO food_posts
		   (id, title, description, quantity, expiry_date, status, donor_id, location_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Description, post.Quantity, post.ExpiryDate.UTC(),
		post.Status, post.DonorID, post.LocationID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing post %s: %w", post.ID, err)
	}

	stored, err := db.GetPostByID(ctx, post.ID)
	if err != nil {
		return err
	}
	*post = *stored
	return nil
}

// GetPostByID returns the post with its location and donor attached.
// Returns apperror.ErrNotFound if no post exists with that ID.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.FoodPost, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+postJoins+` WHERE p.id = ?`, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// ListPosts returns the posts matching filter, newest first.
//
// The WHERE clause is assembled from fixed fragments; only values travel as
// parameters.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.FoodPost, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, filter.Status)
	}
	if filter.DonorID != "" {
		conds = append(conds, "p.donor_id = ?")
		args = append(args, filter.DonorID)
	}
	if bb := filter.BoundingBox; bb != nil {
		conds = append(conds,
			"l.latitude BETWEEN ? AND ?",
			"l.longitude BETWEEN ? AND ?",
		)
		args = append(args, bb.LatMin, bb.LatMax, bb.LonMin, bb.LonMax)
	}

	query := `SELECT ` + postColumns + postJoins
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY p.created_at DESC, p.rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.FoodPost{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating post rows: %w", err)
	}
	return posts, nil
}

// ListDonorHistory returns all of donorID's posts, whatever their status,
// each with the requests receivers made on it.
func (db *DB) ListDonorHistory(ctx context.Context, donorID string) ([]model.FoodPost, error) {
	posts, err := db.ListPosts(ctx, repository.PostFilter{DonorID: donorID})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.post_id, r.receiver_id, r.status, r.created_at, u.name, u.email
		 FROM requests r
		 JOIN food_posts p ON p.id = r.post_id
		 JOIN users u ON u.id = r.receiver_id
		 WHERE p.donor_id = ?
		 ORDER BY r.created_at ASC, r.rowid ASC`,
		donorID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing requests for donor %s: %w", donorID, err)
	}
	defer rows.Close()

	byPost := make(map[string][]model.Request)
	for rows.Next() {
		var (
			r     model.Request
			name  string
			email string
		)
		if err := rows.Scan(&r.ID, &r.PostID, &r.ReceiverID, &r.Status, &r.CreatedAt, &name, &email); err != nil {
			return nil, fmt.Errorf("sqlite: scanning request row: %w", err)
		}
		r.Receiver = &model.Participant{ID: r.ReceiverID, Name: name, Email: email}
		byPost[r.PostID] = append(byPost[r.PostID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating request rows: %w", err)
	}

	for i := range posts {
		posts[i].Requests = byPost[posts[i].ID]
	}
	return posts, nil
}

func scanPost(s rowScanner) (*model.FoodPost, error) {
	var (
		p     model.FoodPost
		loc   model.Location
		donor model.Participant
	)
	err := s.Scan(
		&p.ID, &p.Title, &p.Description, &p.Quantity, &p.ExpiryDate, &p.Status,
		&p.DonorID, &p.LocationID, &p.CreatedAt, &p.UpdatedAt,
		&loc.ID, &loc.Latitude, &loc.Longitude, &loc.Address, &loc.CreatedAt,
		&donor.ID, &donor.Name, &donor.Email,
	)
	if err != nil {
		return nil, err
	}
	p.Location = &loc
	p.Donor = &donor
	return &p, nil
}
