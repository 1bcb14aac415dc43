// Package courtdata fronts the scrape engine with caching, persistence
// and the REST surface. Hierarchy reads go LRU, then cache store, then
// the portal; successful scrapes are written through to sqlite so the
// service can keep answering hierarchy and search reads while the
// portal is down.
package courtdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecourts-backend/lib/cachestore"
	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/services/courtdata/db"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/courtdata")

// Scraper is the slice of the engine the service consumes. Satisfied
// by *ecourts.Client.
type Scraper interface {
	States(ctx context.Context) ([]ecourts.HierarchyNode, error)
	Districts(ctx context.Context, stateCode string) ([]ecourts.HierarchyNode, error)
	CourtComplexes(ctx context.Context, stateCode, districtCode string) ([]ecourts.HierarchyNode, error)
	Courts(ctx context.Context, stateCode, districtCode, complexCode string) ([]ecourts.HierarchyNode, error)
	SearchCaseByCNR(ctx context.Context, cnr, stateCode, districtCode string) (ecourts.CaseSearchResult, error)
	SearchCaseByDetails(ctx context.Context, q ecourts.CaseDetailsQuery) (ecourts.CaseSearchResult, error)
	OpenSession(ctx context.Context) (*ecourts.Session, error)
	IssueCaptcha(ctx context.Context, s *ecourts.Session) (*ecourts.CaptchaChallenge, error)
	FetchCauseList(ctx context.Context, s *ecourts.Session, req ecourts.CauseListRequest) (ecourts.CauseListResult, error)
	DownloadCauseListPDF(ctx context.Context, req ecourts.CauseListPDFRequest) ([]byte, error)
}

type ServiceOptions struct {
	Scraper Scraper
	// optional persistent store; nil disables persistence and the
	// portal-down fallback
	DB *sql.DB
	// optional shared cache; nil means in-process LRU only
	Cache cachestore.Store
	// defaults to 6h
	HierarchyTTL time.Duration
	// how long an unsolved captcha session stays alive, defaults to 5m
	SessionTTL time.Duration
}

type Service struct {
	scraper      Scraper
	db           *sql.DB
	qry          *db.Queries
	cache        cachestore.Store
	hierarchyTTL time.Duration

	hierarchy *expirable.LRU[string, []ecourts.HierarchyNode]
	pending   *expirable.LRU[string, *pendingChallenge]
}

// pendingChallenge holds a session waiting for its captcha solution to
// come back from the caller.
type pendingChallenge struct {
	session   *ecourts.Session
	challenge *ecourts.CaptchaChallenge
	// set when the session moved on to a follow-up challenge, so
	// eviction of the old entry must not close it
	rebound bool
}

func NewService(opts ServiceOptions) *Service {
	if opts.HierarchyTTL == 0 {
		opts.HierarchyTTL = time.Hour * 6
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = time.Minute * 5
	}
	if opts.Cache == nil {
		opts.Cache = cachestore.Nop{}
	}

	s := &Service{
		scraper:      opts.Scraper,
		db:           opts.DB,
		cache:        opts.Cache,
		hierarchyTTL: opts.HierarchyTTL,
		hierarchy:    expirable.NewLRU[string, []ecourts.HierarchyNode](256, nil, opts.HierarchyTTL),
		pending: expirable.NewLRU(64, func(_ string, p *pendingChallenge) {
			if !p.rebound {
				p.session.Close()
			}
		}, opts.SessionTTL),
	}
	if opts.DB != nil {
		s.qry = db.New(opts.DB)
	}
	return s
}

func (s *Service) States(ctx context.Context) ([]ecourts.HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "States")
	defer span.End()

	return s.cachedHierarchy(ctx, "hierarchy:states", ecourts.LevelState, "",
		func(ctx context.Context) ([]ecourts.HierarchyNode, error) {
			return s.scraper.States(ctx)
		},
		func(ctx context.Context, qry *db.Queries, node ecourts.HierarchyNode, fetchedAt int64) error {
			return qry.UpsertState(ctx, db.UpsertStateParams{
				Code: node.Code, Name: node.Name, FetchedAt: fetchedAt,
			})
		},
		func(ctx context.Context, qry *db.Queries) ([]db.Node, error) {
			return qry.GetStates(ctx)
		})
}

func (s *Service) Districts(ctx context.Context, stateCode string) ([]ecourts.HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "Districts")
	defer span.End()
	span.SetAttributes(attribute.String("state", stateCode))

	return s.cachedHierarchy(ctx, "hierarchy:districts:"+stateCode, ecourts.LevelDistrict, stateCode,
		func(ctx context.Context) ([]ecourts.HierarchyNode, error) {
			return s.scraper.Districts(ctx, stateCode)
		},
		func(ctx context.Context, qry *db.Queries, node ecourts.HierarchyNode, fetchedAt int64) error {
			return qry.UpsertDistrict(ctx, db.UpsertDistrictParams{
				StateCode: stateCode, Code: node.Code, Name: node.Name, FetchedAt: fetchedAt,
			})
		},
		func(ctx context.Context, qry *db.Queries) ([]db.Node, error) {
			return qry.GetDistricts(ctx, stateCode)
		})
}

func (s *Service) CourtComplexes(ctx context.Context, stateCode, districtCode string) ([]ecourts.HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "CourtComplexes")
	defer span.End()
	span.SetAttributes(
		attribute.String("state", stateCode),
		attribute.String("district", districtCode),
	)

	key := "hierarchy:complexes:" + stateCode + ":" + districtCode
	return s.cachedHierarchy(ctx, key, ecourts.LevelComplex, districtCode,
		func(ctx context.Context) ([]ecourts.HierarchyNode, error) {
			return s.scraper.CourtComplexes(ctx, stateCode, districtCode)
		},
		func(ctx context.Context, qry *db.Queries, node ecourts.HierarchyNode, fetchedAt int64) error {
			return qry.UpsertCourtComplex(ctx, db.UpsertCourtComplexParams{
				StateCode: stateCode, DistrictCode: districtCode,
				Code: node.Code, Name: node.Name, FetchedAt: fetchedAt,
			})
		},
		func(ctx context.Context, qry *db.Queries) ([]db.Node, error) {
			return qry.GetCourtComplexes(ctx, db.GetCourtComplexesParams{
				StateCode: stateCode, DistrictCode: districtCode,
			})
		})
}

func (s *Service) Courts(ctx context.Context, stateCode, districtCode, complexCode string) ([]ecourts.HierarchyNode, error) {
	ctx, span := tracer.Start(ctx, "Courts")
	defer span.End()
	span.SetAttributes(
		attribute.String("state", stateCode),
		attribute.String("district", districtCode),
		attribute.String("complex", complexCode),
	)

	key := "hierarchy:courts:" + stateCode + ":" + districtCode + ":" + complexCode
	return s.cachedHierarchy(ctx, key, ecourts.LevelCourt, complexCode,
		func(ctx context.Context) ([]ecourts.HierarchyNode, error) {
			return s.scraper.Courts(ctx, stateCode, districtCode, complexCode)
		},
		func(ctx context.Context, qry *db.Queries, node ecourts.HierarchyNode, fetchedAt int64) error {
			return qry.UpsertCourt(ctx, db.UpsertCourtParams{
				StateCode: stateCode, DistrictCode: districtCode, ComplexCode: complexCode,
				Code: node.Code, Name: node.Name, FetchedAt: fetchedAt,
			})
		},
		func(ctx context.Context, qry *db.Queries) ([]db.Node, error) {
			return qry.GetCourts(ctx, db.GetCourtsParams{
				StateCode: stateCode, DistrictCode: districtCode, ComplexCode: complexCode,
			})
		})
}

func (s *Service) cachedHierarchy(
	ctx context.Context,
	key string,
	level ecourts.HierarchyLevel,
	parentCode string,
	scrape func(context.Context) ([]ecourts.HierarchyNode, error),
	persist func(context.Context, *db.Queries, ecourts.HierarchyNode, int64) error,
	load func(context.Context, *db.Queries) ([]db.Node, error),
) ([]ecourts.HierarchyNode, error) {
	if nodes, ok := s.hierarchy.Get(key); ok {
		return nodes, nil
	}

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "cache read failed", "key", key, "err", err)
	} else if ok {
		var nodes []ecourts.HierarchyNode
		if err := json.Unmarshal(raw, &nodes); err == nil {
			s.hierarchy.Add(key, nodes)
			return nodes, nil
		}
		slog.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
	}

	nodes, err := scrape(ctx)
	if err != nil {
		if ecourts.IsPortalUnavailable(err) {
			if fallback, ok := s.loadFromDB(ctx, level, parentCode, load); ok {
				slog.WarnContext(ctx, "portal unavailable, serving persisted hierarchy",
					"key", key, "err", err)
				return fallback, nil
			}
		}
		return nil, err
	}

	s.hierarchy.Add(key, nodes)
	if raw, err := json.Marshal(nodes); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.hierarchyTTL); err != nil {
			slog.WarnContext(ctx, "cache write failed", "key", key, "err", err)
		}
	}
	if err := s.persistNodes(ctx, nodes, persist); err != nil {
		slog.WarnContext(ctx, "hierarchy write-through failed", "key", key, "err", err)
	}
	return nodes, nil
}

func (s *Service) persistNodes(
	ctx context.Context,
	nodes []ecourts.HierarchyNode,
	persist func(context.Context, *db.Queries, ecourts.HierarchyNode, int64) error,
) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txqry := s.qry.WithTx(tx)
	fetchedAt := time.Now().Unix()
	for _, node := range nodes {
		if err := persist(ctx, txqry, node, fetchedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Service) loadFromDB(
	ctx context.Context,
	level ecourts.HierarchyLevel,
	parentCode string,
	load func(context.Context, *db.Queries) ([]db.Node, error),
) ([]ecourts.HierarchyNode, bool) {
	if s.db == nil {
		return nil, false
	}
	rows, err := load(ctx, s.qry)
	if err != nil || len(rows) == 0 {
		return nil, false
	}
	nodes := make([]ecourts.HierarchyNode, len(rows))
	for i, r := range rows {
		nodes[i] = ecourts.HierarchyNode{
			Code:       r.Code,
			Name:       r.Name,
			Level:      level,
			ParentCode: parentCode,
		}
	}
	return nodes, true
}

func (s *Service) SearchCNR(ctx context.Context, cnr, stateCode, districtCode string) (ecourts.CaseSearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchCNR")
	defer span.End()

	key := "search:cnr:" + strings.ToUpper(strings.TrimSpace(cnr))
	result, err := s.scraper.SearchCaseByCNR(ctx, cnr, stateCode, districtCode)
	if err != nil {
		if ecourts.IsPortalUnavailable(err) {
			if cached, ok := s.loadSearchResult(ctx, key); ok {
				slog.WarnContext(ctx, "portal unavailable, serving persisted search result",
					"key", key, "err", err)
				return cached, nil
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cnr search failed")
		return ecourts.CaseSearchResult{}, err
	}

	s.persistSearchResult(ctx, key, result)
	return result, nil
}

func (s *Service) SearchDetails(ctx context.Context, q ecourts.CaseDetailsQuery) (ecourts.CaseSearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchDetails")
	defer span.End()

	key := strings.Join([]string{
		"search:case", q.StateCode, q.DistrictCode, q.CourtCode,
		q.CaseType, q.CaseNumber, q.CaseYear,
	}, ":")
	result, err := s.scraper.SearchCaseByDetails(ctx, q)
	if err != nil {
		if ecourts.IsPortalUnavailable(err) {
			if cached, ok := s.loadSearchResult(ctx, key); ok {
				slog.WarnContext(ctx, "portal unavailable, serving persisted search result",
					"key", key, "err", err)
				return cached, nil
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "case details search failed")
		return ecourts.CaseSearchResult{}, err
	}

	s.persistSearchResult(ctx, key, result)
	return result, nil
}

func (s *Service) persistSearchResult(ctx context.Context, key string, result ecourts.CaseSearchResult) {
	if s.db == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	err = s.qry.UpsertSearchResult(ctx, db.UpsertSearchResultParams{
		QueryKey:  key,
		Payload:   string(payload),
		FetchedAt: time.Now().Unix(),
	})
	if err != nil {
		slog.WarnContext(ctx, "search result write-through failed", "key", key, "err", err)
	}
}

func (s *Service) loadSearchResult(ctx context.Context, key string) (ecourts.CaseSearchResult, bool) {
	if s.db == nil {
		return ecourts.CaseSearchResult{}, false
	}
	payload, err := s.qry.GetSearchResult(ctx, key)
	if err != nil {
		return ecourts.CaseSearchResult{}, false
	}
	var result ecourts.CaseSearchResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return ecourts.CaseSearchResult{}, false
	}
	return result, true
}

// NewCaptcha opens a portal session, pulls a challenge off it and parks
// the session until the solution comes back through CauseList. Unsolved
// sessions are closed when their entry expires.
func (s *Service) NewCaptcha(ctx context.Context) (*ecourts.CaptchaChallenge, error) {
	ctx, span := tracer.Start(ctx, "NewCaptcha")
	defer span.End()

	session, err := s.scraper.OpenSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open portal session")
		return nil, err
	}

	challenge, err := s.scraper.IssueCaptcha(ctx, session)
	if err != nil {
		session.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue captcha")
		return nil, err
	}

	s.pending.Add(challenge.ID, &pendingChallenge{session: session, challenge: challenge})
	return challenge, nil
}

type CauseListParams struct {
	StateCode    string `json:"state_code"`
	DistrictCode string `json:"district_code"`
	ComplexCode  string `json:"complex_code"`
	CourtCode    string `json:"court_code"`
	Date         string `json:"date"`
	CauseType    string `json:"cause_type"`
	CourtName    string `json:"court_name"`
	ChallengeID  string `json:"challenge_id"`
	Solution     string `json:"captcha_solution"`
}

// CauseList resolves the parked session for the challenge and runs the
// protected fetch. When the engine hands back a follow-up challenge the
// session is re-parked under the new id, so a client can page through
// dates without reopening sessions.
func (s *Service) CauseList(ctx context.Context, params CauseListParams) (ecourts.CauseListResult, error) {
	ctx, span := tracer.Start(ctx, "CauseList")
	defer span.End()

	p, ok := s.pending.Get(params.ChallengeID)
	if !ok {
		return ecourts.CauseListResult{}, &ecourts.ValidationError{
			Field:  "challenge_id",
			Reason: "challenge is unknown or has expired",
		}
	}

	result, err := s.scraper.FetchCauseList(ctx, p.session, ecourts.CauseListRequest{
		StateCode:    params.StateCode,
		DistrictCode: params.DistrictCode,
		ComplexCode:  params.ComplexCode,
		CourtCode:    params.CourtCode,
		Date:         params.Date,
		CauseType:    ecourts.CauseType(params.CauseType),
		CourtName:    params.CourtName,
		Challenge:    p.challenge,
		Solution:     params.Solution,
	})

	var next *ecourts.CaptchaChallenge
	if result.NextChallenge != nil {
		next = result.NextChallenge
	}
	var rejected *ecourts.CaptchaRejectedError
	if errors.As(err, &rejected) && rejected.NextChallenge != nil {
		next = rejected.NextChallenge
	}

	if next != nil {
		p.rebound = true
	}
	s.pending.Remove(params.ChallengeID)
	if next != nil {
		s.pending.Add(next.ID, &pendingChallenge{session: p.session, challenge: next})
	}

	if err != nil {
		if ecourts.IsPortalUnavailable(err) {
			if cached, ok := s.loadCauseList(ctx, params); ok {
				slog.WarnContext(ctx, "portal unavailable, serving persisted cause list",
					"court", params.CourtCode, "date", params.Date, "err", err)
				return cached, nil
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cause list fetch failed")
		return ecourts.CauseListResult{}, err
	}

	s.persistCauseList(ctx, params, result)
	return result, nil
}

func (s *Service) persistCauseList(ctx context.Context, params CauseListParams, result ecourts.CauseListResult) {
	if s.db == nil || len(result.PortalErrors) > 0 {
		return
	}
	// the follow-up challenge is session state, not cause list data
	stored := result
	stored.NextChallenge = nil
	payload, err := json.Marshal(stored)
	if err != nil {
		return
	}
	err = s.qry.UpsertCauseList(ctx, db.UpsertCauseListParams{
		CourtCode: params.CourtCode,
		ListDate:  params.Date,
		CauseType: params.CauseType,
		Payload:   string(payload),
		FetchedAt: time.Now().Unix(),
	})
	if err != nil {
		slog.WarnContext(ctx, "cause list write-through failed",
			"court", params.CourtCode, "date", params.Date, "err", err)
	}
}

func (s *Service) loadCauseList(ctx context.Context, params CauseListParams) (ecourts.CauseListResult, bool) {
	if s.db == nil {
		return ecourts.CauseListResult{}, false
	}
	payload, err := s.qry.GetCauseList(ctx, db.GetCauseListParams{
		CourtCode: params.CourtCode,
		ListDate:  params.Date,
		CauseType: params.CauseType,
	})
	if err != nil {
		return ecourts.CauseListResult{}, false
	}
	var result ecourts.CauseListResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return ecourts.CauseListResult{}, false
	}
	return result, true
}

func (s *Service) DownloadPDF(ctx context.Context, req ecourts.CauseListPDFRequest) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "DownloadPDF")
	defer span.End()

	body, err := s.scraper.DownloadCauseListPDF(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf download failed")
		return nil, err
	}
	return body, nil
}

func (s *Service) Healthy(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
