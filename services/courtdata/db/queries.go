package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Node struct {
	Code string
	Name string
}

type UpsertStateParams struct {
	Code      string
	Name      string
	FetchedAt int64
}

func (q *Queries) UpsertState(ctx context.Context, arg UpsertStateParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO states (code, name, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name, fetched_at = excluded.fetched_at`,
		arg.Code, arg.Name, arg.FetchedAt)
	return err
}

func (q *Queries) GetStates(ctx context.Context) ([]Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT code, name FROM states ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type UpsertDistrictParams struct {
	StateCode string
	Code      string
	Name      string
	FetchedAt int64
}

func (q *Queries) UpsertDistrict(ctx context.Context, arg UpsertDistrictParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO districts (state_code, code, name, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (state_code, code) DO UPDATE SET name = excluded.name, fetched_at = excluded.fetched_at`,
		arg.StateCode, arg.Code, arg.Name, arg.FetchedAt)
	return err
}

func (q *Queries) GetDistricts(ctx context.Context, stateCode string) ([]Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT code, name FROM districts WHERE state_code = ? ORDER BY name`,
		stateCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type UpsertCourtComplexParams struct {
	StateCode    string
	DistrictCode string
	Code         string
	Name         string
	FetchedAt    int64
}

func (q *Queries) UpsertCourtComplex(ctx context.Context, arg UpsertCourtComplexParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO court_complexes (state_code, district_code, code, name, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (state_code, district_code, code)
		DO UPDATE SET name = excluded.name, fetched_at = excluded.fetched_at`,
		arg.StateCode, arg.DistrictCode, arg.Code, arg.Name, arg.FetchedAt)
	return err
}

type GetCourtComplexesParams struct {
	StateCode    string
	DistrictCode string
}

func (q *Queries) GetCourtComplexes(ctx context.Context, arg GetCourtComplexesParams) ([]Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT code, name FROM court_complexes
		WHERE state_code = ? AND district_code = ? ORDER BY name`,
		arg.StateCode, arg.DistrictCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type UpsertCourtParams struct {
	StateCode    string
	DistrictCode string
	ComplexCode  string
	Code         string
	Name         string
	FetchedAt    int64
}

func (q *Queries) UpsertCourt(ctx context.Context, arg UpsertCourtParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO courts (state_code, district_code, complex_code, code, name, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (state_code, district_code, complex_code, code)
		DO UPDATE SET name = excluded.name, fetched_at = excluded.fetched_at`,
		arg.StateCode, arg.DistrictCode, arg.ComplexCode, arg.Code, arg.Name, arg.FetchedAt)
	return err
}

type GetCourtsParams struct {
	StateCode    string
	DistrictCode string
	ComplexCode  string
}

func (q *Queries) GetCourts(ctx context.Context, arg GetCourtsParams) ([]Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT code, name FROM courts
		WHERE state_code = ? AND district_code = ? AND complex_code = ?
		ORDER BY name`,
		arg.StateCode, arg.DistrictCode, arg.ComplexCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type UpsertSearchResultParams struct {
	QueryKey  string
	Payload   string
	FetchedAt int64
}

func (q *Queries) UpsertSearchResult(ctx context.Context, arg UpsertSearchResultParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO search_results (query_key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (query_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		arg.QueryKey, arg.Payload, arg.FetchedAt)
	return err
}

func (q *Queries) GetSearchResult(ctx context.Context, queryKey string) (string, error) {
	var payload string
	err := q.db.QueryRowContext(ctx,
		`SELECT payload FROM search_results WHERE query_key = ?`,
		queryKey).Scan(&payload)
	return payload, err
}

type UpsertCauseListParams struct {
	CourtCode string
	ListDate  string
	CauseType string
	Payload   string
	FetchedAt int64
}

func (q *Queries) UpsertCauseList(ctx context.Context, arg UpsertCauseListParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO cause_lists (court_code, list_date, cause_type, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (court_code, list_date, cause_type)
		DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		arg.CourtCode, arg.ListDate, arg.CauseType, arg.Payload, arg.FetchedAt)
	return err
}

type GetCauseListParams struct {
	CourtCode string
	ListDate  string
	CauseType string
}

func (q *Queries) GetCauseList(ctx context.Context, arg GetCauseListParams) (string, error) {
	var payload string
	err := q.db.QueryRowContext(ctx,
		`SELECT payload FROM cause_lists
		WHERE court_code = ? AND list_date = ? AND cause_type = ?`,
		arg.CourtCode, arg.ListDate, arg.CauseType).Scan(&payload)
	return payload, err
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Code, &n.Name); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
