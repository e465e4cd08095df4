package favorite

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Favorite is a user-saved question/query pair. It has no relationship to the
// event log.
type Favorite struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:varchar(255);not null;index" json:"-"`
	UserEmail string    `gorm:"type:varchar(255)" json:"-"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	SQLQuery  string    `gorm:"type:text;not null;column:sql_query" json:"sql_query"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Favorite) TableName() string { return "user_favorites" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(gdb *gorm.DB) *Repo {
	return &Repo{db: gdb}
}

func (r *Repo) Create(ctx context.Context, f *Favorite) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// List returns a user's favorites, newest first.
func (r *Repo) List(ctx context.Context, userID string) ([]Favorite, error) {
	var favorites []Favorite
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, err
	}
	return favorites, nil
}

// Update edits the question/query text of a favorite the user owns.
func (r *Repo) Update(ctx context.Context, id uint64, userID, question, sqlQuery string) error {
	res := r.db.WithContext(ctx).Model(&Favorite{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"question":  question,
			"sql_query": sqlQuery,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a favorite; the user_id guard keeps users inside their own
// rows.
func (r *Repo) Delete(ctx context.Context, id uint64, userID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
