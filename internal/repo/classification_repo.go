package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/pkg/dbutil"
	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
)

var classificationFields = []string{"id", "contract_id", "mode", "model", "result", "valid", "errors", "ctime"}

type ClassificationRepo struct {
	db *sql.DB
}

func NewClassificationRepo(db *sql.DB) *ClassificationRepo {
	return &ClassificationRepo{db: db}
}

func (r *ClassificationRepo) Create(ctx context.Context, rec *model.ClassificationRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	errRaw, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	valid := 0
	if rec.Valid {
		valid = 1
	}
	data := map[string]interface{}{
		"id":          rec.ID,
		"contract_id": rec.ContractID,
		"mode":        string(rec.Mode),
		"model":       rec.Model,
		"result":      rec.Result,
		"valid":       valid,
		"errors":      string(errRaw),
		"ctime":       rec.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("classifications", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ClassificationRepo) GetByID(ctx context.Context, id string) (*model.ClassificationRecord, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("classifications", where, classificationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanClassification(rows)
}

func (r *ClassificationRepo) ListByContract(ctx context.Context, contractID string, offset, limit uint) ([]*model.ClassificationRecord, error) {
	where := map[string]interface{}{
		"contract_id": contractID,
		"_orderby":    "ctime desc",
		"_limit":      []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("classifications", where, classificationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.ClassificationRecord, 0)
	for rows.Next() {
		rec, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func scanClassification(rows *sql.Rows) (*model.ClassificationRecord, error) {
	var (
		rec    model.ClassificationRecord
		mode   string
		valid  int
		errRaw string
	)
	if err := rows.Scan(&rec.ID, &rec.ContractID, &mode, &rec.Model, &rec.Result, &valid, &errRaw, &rec.Ctime); err != nil {
		return nil, err
	}
	rec.Mode = model.Mode(mode)
	rec.Valid = valid == 1
	if err := json.Unmarshal([]byte(errRaw), &rec.Errors); err != nil {
		return nil, err
	}
	return &rec, nil
}
