package repository

import (
	"context"
	"errors"
	"fmt"

	"albumvault/model"

	"gorm.io/gorm"
)

// AlbumRepository 定义专辑相关的数据库操作接口
type AlbumRepository interface {
	// Create 创建新专辑
	Create(ctx context.Context, album *model.Album) error

	// FindByID 根据ID获取专辑信息，不校验所有者
	FindByID(ctx context.Context, id int64) (*model.Album, error)

	// FindByIDAndOwner 获取属于 userID 的专辑。
	// 专辑不存在与专辑属于他人返回相同结果 (nil, nil)。
	FindByIDAndOwner(ctx context.Context, id, userID int64) (*model.Album, error)

	// ListByOwner 分页获取用户的专辑
	ListByOwner(ctx context.Context, userID int64, page, size int) (*model.Page[model.Album], error)

	// ListPublic 分页获取公开专辑
	ListPublic(ctx context.Context, page, size int) (*model.Page[model.Album], error)

	// ListIDsByOwner 获取用户全部专辑ID
	ListIDsByOwner(ctx context.Context, userID int64) ([]int64, error)

	// Update 更新专辑信息
	Update(ctx context.Context, album *model.Album) error

	// Delete 删除专辑，歌曲需先删除
	Delete(ctx context.Context, id int64) error
}

type gormAlbumRepository struct {
	db *gorm.DB
}

// NewGormAlbumRepository 创建 GORM 专辑仓库
func NewGormAlbumRepository(db *gorm.DB) AlbumRepository {
	return &gormAlbumRepository{db: db}
}

func (r *gormAlbumRepository) Create(ctx context.Context, album *model.Album) error {
	return r.db.WithContext(ctx).Create(album).Error
}

func (r *gormAlbumRepository) FindByID(ctx context.Context, id int64) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).First(&album, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get album %d: %w", id, err)
	}
	return &album, nil
}

func (r *gormAlbumRepository) FindByIDAndOwner(ctx context.Context, id, userID int64) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&album).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get album %d: %w", id, err)
	}
	return &album, nil
}

func (r *gormAlbumRepository) ListByOwner(ctx context.Context, userID int64, page, size int) (*model.Page[model.Album], error) {
	return r.list(ctx, r.db.Where("user_id = ?", userID), page, size)
}

func (r *gormAlbumRepository) ListPublic(ctx context.Context, page, size int) (*model.Page[model.Album], error) {
	return r.list(ctx, r.db.Where("internal = ?", false), page, size)
}

func (r *gormAlbumRepository) list(ctx context.Context, scope *gorm.DB, page, size int) (*model.Page[model.Album], error) {
	page, size = normalizePage(page, size)

	var total int64
	if err := scope.Session(&gorm.Session{}).WithContext(ctx).Model(&model.Album{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count albums: %w", err)
	}

	var albums []model.Album
	err := scope.Session(&gorm.Session{}).WithContext(ctx).
		Order("id ASC").
		Offset(page * size).
		Limit(size).
		Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return model.NewPage(albums, page, size, total), nil
}

func (r *gormAlbumRepository) ListIDsByOwner(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Album{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *gormAlbumRepository) Update(ctx context.Context, album *model.Album) error {
	// map 形式确保 internal=false 也会被写入
	return r.db.WithContext(ctx).Model(&model.Album{}).
		Where("id = ? AND user_id = ?", album.ID, album.UserID).
		Updates(map[string]interface{}{
			"name":        album.Name,
			"description": album.Description,
			"internal":    album.Internal,
		}).Error
}

func (r *gormAlbumRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Album{}, id).Error
}
