package repository

import (
	"settle/internal/db"
	"settle/internal/model"
)

type RootRepository struct{}

func NewRootRepository() *RootRepository {
	return &RootRepository{}
}

func (r *RootRepository) Add(path string, recursive bool) (model.Root, error) {
	root := model.Root{
		Path:      path,
		Recursive: recursive,
		Status:    model.RootStatusActive,
	}

	return root, db.DB.Create(&root).Error
}

func (r *RootRepository) GetAll() ([]model.Root, error) {
	var roots []model.Root
	return roots, db.DB.Order("id").Find(&roots).Error
}

func (r *RootRepository) GetByID(id uint) (model.Root, error) {
	var root model.Root
	return root, db.DB.First(&root, id).Error
}

func (r *RootRepository) GetByPath(path string) (model.Root, error) {
	var root model.Root
	return root, db.DB.Where("path = ?", path).First(&root).Error
}

func (r *RootRepository) UpdateStatus(id uint, status model.RootStatus) error {
	return db.DB.Model(&model.Root{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete removes the root for good so its path can be added again.
func (r *RootRepository) Delete(id uint) error {
	return db.DB.Unscoped().Delete(&model.Root{}, id).Error
}
