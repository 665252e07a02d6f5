package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/placemap/internal/model"
)

// PostgresPlaceRepo はPostgreSQLを使用したスポットリポジトリ。
// タグはJSONB列に登録順のまま保存する（重複許容）。
type PostgresPlaceRepo struct {
	db *sql.DB
}

// NewPostgresPlaceRepo はPostgresPlaceRepoを生成する。
func NewPostgresPlaceRepo(db *sql.DB) *PostgresPlaceRepo {
	return &PostgresPlaceRepo{db: db}
}

// placeColumns はSELECTで取得する列の並び。scanPlaceと対で管理する。
const placeColumns = `id, title, description, lat, lon, photo_path, tags, user_id, created_at, updated_at`

// Create はスポットを作成し、採番されたIDとcreated_atをplaceに書き戻す。
// 空のdescription/photo_pathはNULLとして保存する。
func (r *PostgresPlaceRepo) Create(ctx context.Context, place *model.Place) error {
	tags := place.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO places (title, description, lat, lon, photo_path, tags, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		place.Title,
		nullIfEmpty(place.Description),
		place.Lat,
		place.Lon,
		nullIfEmpty(place.PhotoPath),
		tagsJSON,
		place.UserID,
	).Scan(&place.ID, &place.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}

	return nil
}

// List はスポット一覧をcreated_at降順で返す。
// 同時刻の行はID降順で安定順序にし、隣接ページ間の取りこぼし・重複を防ぐ。
func (r *PostgresPlaceRepo) List(ctx context.Context, skip, limit int) ([]*model.Place, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+placeColumns+` FROM places
		 ORDER BY created_at DESC, id DESC
		 OFFSET $1 LIMIT $2`,
		skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer rows.Close()

	return collectPlaces(rows)
}

// FindByBoundingBox は閉区間の範囲比較でスポットを絞り込む。
// 空間インデックスは使わない線形レンジスキャン。min > max の場合は空集合が返る。
func (r *PostgresPlaceRepo) FindByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]*model.Place, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+placeColumns+` FROM places
		 WHERE lat >= $1 AND lat <= $2 AND lon >= $3 AND lon <= $4
		 ORDER BY created_at DESC, id DESC`,
		minLat, maxLat, minLon, maxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find places by bounding box: %w", err)
	}
	defer rows.Close()

	return collectPlaces(rows)
}

// FindByUser は指定ユーザーが所有するスポットをcreated_at降順で返す。
func (r *PostgresPlaceRepo) FindByUser(ctx context.Context, userID int64) ([]*model.Place, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+placeColumns+` FROM places
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find places by user: %w", err)
	}
	defer rows.Close()

	return collectPlaces(rows)
}

// Count は登録スポット数を返す。
func (r *PostgresPlaceRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM places`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return count, nil
}

// collectPlaces は結果セットの全行をスキャンして返す。
func collectPlaces(rows *sql.Rows) ([]*model.Place, error) {
	var places []*model.Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate place rows: %w", err)
	}
	return places, nil
}

// scanPlace は1行をmodel.Placeにスキャンする。placeColumnsと対で管理する。
func scanPlace(rows *sql.Rows) (*model.Place, error) {
	place := &model.Place{}
	var (
		description sql.NullString
		photoPath   sql.NullString
		tagsJSON    []byte
		updatedAt   sql.NullTime
	)

	err := rows.Scan(
		&place.ID, &place.Title, &description, &place.Lat, &place.Lon,
		&photoPath, &tagsJSON, &place.UserID, &place.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan place row: %w", err)
	}

	place.Description = description.String
	place.PhotoPath = photoPath.String
	if updatedAt.Valid {
		t := updatedAt.Time
		place.UpdatedAt = &t
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &place.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if place.Tags == nil {
		place.Tags = []string{}
	}

	return place, nil
}

// nullIfEmpty は空文字列をNULLに写像する。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ PlaceRepository = (*PostgresPlaceRepo)(nil)
