package center

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var pg = goqu.Dialect("postgres")

var centerCols = []interface{}{
	"id", "name", "code", "address", "phone", "active",
	"consultation_fee", "registration_fee", "superconsultant_fee", "reassignment_fee",
	"currency", "created_at", "updated_at",
}

var ruleCols = []interface{}{
	"id", "center_id", "name", "kind", "value", "applies_to", "active",
	"valid_from", "valid_until", "created_at", "updated_at",
}

// =========== Center Repository ===========

type centerRepoPG struct{ db *sqlx.DB }

func NewCenterRepoPG(db *sqlx.DB) CenterRepository { return &centerRepoPG{db: db} }

func centerRecord(c *Center) goqu.Record {
	return goqu.Record{
		"name":                c.Name,
		"code":                c.Code,
		"address":             c.Address,
		"phone":               c.Phone,
		"active":              c.Active,
		"consultation_fee":    c.ConsultationFee,
		"registration_fee":    c.RegistrationFee,
		"superconsultant_fee": c.SuperconsultantFee,
		"reassignment_fee":    c.ReassignmentFee,
		"currency":            c.Currency,
		"updated_at":          c.UpdatedAt,
	}
}

func (r *centerRepoPG) Create(ctx context.Context, c *Center) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	rec := centerRecord(c)
	rec["id"] = c.ID
	rec["created_at"] = c.CreatedAt

	query, args, err := pg.Insert("centers").Rows(rec).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert center: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

func (r *centerRepoPG) get(ctx context.Context, where goqu.Ex) (*Center, error) {
	query, args, err := pg.From("centers").Select(centerCols...).Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select center: %w", err)
	}
	var c Center
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select center: %w", err)
	}
	return &c, nil
}

func (r *centerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Center, error) {
	return r.get(ctx, goqu.Ex{"id": id})
}

func (r *centerRepoPG) GetByCode(ctx context.Context, code string) (*Center, error) {
	return r.get(ctx, goqu.Ex{"code": code})
}

func (r *centerRepoPG) Update(ctx context.Context, c *Center) error {
	c.UpdatedAt = time.Now().UTC()
	query, args, err := pg.Update("centers").Set(centerRecord(c)).Where(goqu.Ex{"id": c.ID}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update center: %w", err)
	}
	return execOne(ctx, r.db, query, args)
}

func (r *centerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := pg.Delete("centers").Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete center: %w", err)
	}
	return execOne(ctx, r.db, query, args)
}

func (r *centerRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Center, int, error) {
	ds := pg.From("centers").Prepared(true)
	if f.Active != nil {
		ds = ds.Where(goqu.Ex{"active": *f.Active})
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		ds = ds.Where(goqu.Or(goqu.C("name").ILike(like), goqu.C("code").ILike(like)))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count centers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count centers: %w", err)
	}

	query, args, err := ds.Select(centerCols...).Order(goqu.C("name").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list centers: %w", err)
	}
	var items []*Center
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list centers: %w", err)
	}
	return items, total, nil
}

// =========== Discount Rule Repository ===========

type discountRepoPG struct{ db *sqlx.DB }

func NewDiscountRepoPG(db *sqlx.DB) DiscountRepository { return &discountRepoPG{db: db} }

func ruleRecord(d *DiscountRule) goqu.Record {
	return goqu.Record{
		"name":        d.Name,
		"kind":        d.Kind,
		"value":       d.Value,
		"applies_to":  d.AppliesTo,
		"active":      d.Active,
		"valid_from":  d.ValidFrom,
		"valid_until": d.ValidUntil,
		"updated_at":  d.UpdatedAt,
	}
}

func (r *discountRepoPG) Create(ctx context.Context, d *DiscountRule) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	rec := ruleRecord(d)
	rec["id"] = d.ID
	rec["center_id"] = d.CenterID
	rec["created_at"] = d.CreatedAt

	query, args, err := pg.Insert("discount_rules").Rows(rec).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert discount rule: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert discount rule: %w", err)
	}
	return nil
}

func (r *discountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DiscountRule, error) {
	query, args, err := pg.From("discount_rules").Select(ruleCols...).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select discount rule: %w", err)
	}
	var d DiscountRule
	if err := r.db.GetContext(ctx, &d, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select discount rule: %w", err)
	}
	return &d, nil
}

func (r *discountRepoPG) Update(ctx context.Context, d *DiscountRule) error {
	d.UpdatedAt = time.Now().UTC()
	query, args, err := pg.Update("discount_rules").Set(ruleRecord(d)).Where(goqu.Ex{"id": d.ID}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update discount rule: %w", err)
	}
	return execOne(ctx, r.db, query, args)
}

func (r *discountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := pg.Delete("discount_rules").Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete discount rule: %w", err)
	}
	return execOne(ctx, r.db, query, args)
}

func (r *discountRepoPG) ListByCenter(ctx context.Context, centerID uuid.UUID) ([]*DiscountRule, error) {
	query, args, err := pg.From("discount_rules").Select(ruleCols...).
		Where(goqu.Ex{"center_id": centerID}).
		Order(goqu.C("created_at").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list discount rules: %w", err)
	}
	var items []*DiscountRule
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list discount rules: %w", err)
	}
	return items, nil
}

// execOne runs a statement expected to touch exactly one row.
func execOne(ctx context.Context, db *sqlx.DB, query string, args []interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
