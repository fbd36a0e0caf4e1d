package grading

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = errors.New("grade record not found")
	ErrDraftNotFound = errors.New("grade draft not found")
	ErrClassNotFound = errors.New("class not found")
	ErrNoScores      = core.NewConflictError("no score has been entered yet")
)

type (
	Repository interface {
		QueryCategories(ctx context.Context) ([]Category, error)
		GetRecord(ctx context.Context, regisID int) (Record, error)
		QueryClassRecords(ctx context.Context, classID int) ([]Record, error)
		// SaveScores upserts the given scores of a registration; a nil value clears the score.
		SaveScores(ctx context.Context, regisID int, scores map[int]*float64) error
		SaveFinalResult(ctx context.Context, res FinalResult) error
		QueryFinalResults(ctx context.Context) ([]FinalResult, error)
		// GetClassTeacher returns the ID of the teacher of a class, or ErrClassNotFound.
		GetClassTeacher(ctx context.Context, classID int) (int, error)
	}

	// DraftStore persists unsaved score sheets between page loads.
	DraftStore interface {
		SaveDraft(ctx context.Context, draft Draft) error
		// LoadDraft returns ErrDraftNotFound when there is no draft for key.
		LoadDraft(ctx context.Context, key DraftKey) (Draft, error)
		ClearDraft(ctx context.Context, key DraftKey) error
	}

	Service struct {
		repo    Repository
		drafts  DraftStore
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, drafts DraftStore, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, drafts: drafts, mailSvc: mailSvc}
}

// AuthorizeClass fails with core.ErrForbidden unless usr teaches the class or is an admin.
func (svc *Service) AuthorizeClass(ctx context.Context, usr user.User, classID int) error {
	teacherID, err := svc.repo.GetClassTeacher(ctx, classID)
	if err != nil {
		return errors.Wrap(err, "getting class teacher")
	}
	if !usr.TeachesClass(teacherID) {
		return core.ErrForbidden
	}
	return nil
}

// AuthorizeRegistration is AuthorizeClass for the class of a registration.
func (svc *Service) AuthorizeRegistration(ctx context.Context, usr user.User, regisID int) error {
	rec, err := svc.repo.GetRecord(ctx, regisID)
	if err != nil {
		return errors.Wrap(err, "getting grade record")
	}
	return svc.AuthorizeClass(ctx, usr, rec.ClassID)
}

func (svc *Service) Categories(ctx context.Context) ([]Category, error) {
	cats, err := svc.repo.QueryCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade categories")
	}
	return cats, nil
}

// SaveScores parses and stores the raw scores of a registration ({categoryID: value})
// and returns the recomputed result. Categories left out keep their stored score,
// blank values clear it, negative values are stored as 0.
func (svc *Service) SaveScores(ctx context.Context, regisID int, raw map[int]string) (Result, error) {
	cats, err := svc.Categories(ctx)
	if err != nil {
		return Result{}, err
	}
	rec, err := svc.repo.GetRecord(ctx, regisID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting grade record")
	}

	scores, err := parseScores(cats, raw)
	if err != nil {
		return Result{}, err
	}
	if err = svc.repo.SaveScores(ctx, regisID, scores); err != nil {
		return Result{}, errors.Wrap(err, "saving scores")
	}

	if rec.Scores == nil {
		rec.Scores = make(map[int]*float64, len(scores))
	}
	for catID, val := range scores {
		rec.Scores[catID] = val
	}
	return Evaluate(rec.Entries(cats))
}

func parseScores(cats []Category, raw map[int]string) (map[int]*float64, error) {
	known := make(map[int]bool, len(cats))
	for _, cat := range cats {
		known[cat.ID] = true
	}

	scores := make(map[int]*float64, len(raw))
	var flds []core.FieldError
	for catID, val := range raw {
		field := "scores." + strconv.Itoa(catID)
		if !known[catID] {
			flds = append(flds, core.FieldError{Field: field, Error: "unknown grade category"})
			continue
		}
		score := ParseScore(val)
		if score.Kind == ScoreInvalid {
			flds = append(flds, core.FieldError{Field: field, Error: fmt.Sprintf("%q is not a number", val)})
			continue
		}
		if score.OK() && score.Value < 0 {
			score.Value = 0
		}
		scores[catID] = score.Ptr()
	}
	if flds != nil {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return nil, core.NewValidationError(nil, flds...)
	}
	return scores, nil
}

// Evaluate returns the record of a registration with its current result.
func (svc *Service) Evaluate(ctx context.Context, regisID int) (Record, Result, error) {
	cats, err := svc.Categories(ctx)
	if err != nil {
		return Record{}, Result{}, err
	}
	rec, err := svc.repo.GetRecord(ctx, regisID)
	if err != nil {
		return Record{}, Result{}, errors.Wrap(err, "getting grade record")
	}
	res, err := Evaluate(rec.Entries(cats))
	if err != nil {
		return Record{}, Result{}, errors.Wrap(err, "evaluating record")
	}
	return rec, res, nil
}

// ClassReport evaluates every learner of a class. Supported ordering fields: name, average.
func (svc *Service) ClassReport(ctx context.Context, classID int, ordering []core.DBOrdering) ([]ReportRow, error) {
	var (
		cats []Category
		recs []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cats, err = svc.Categories(gctx)
		return err
	})
	g.Go(func() (err error) {
		recs, err = svc.repo.QueryClassRecords(gctx, classID)
		return errors.Wrap(err, "querying class records")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]ReportRow, 0, len(recs))
	for _, rec := range recs {
		res, err := Evaluate(rec.Entries(cats))
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating registration %d", rec.RegistrationID)
		}
		rows = append(rows, ReportRow{Record: rec, Result: res})
	}

	byAverage, ascending := false, true
	if len(ordering) > 0 {
		byAverage = ordering[0].Field == "average"
		ascending = ordering[0].Ascending
	}
	sortRows(rows, byAverage, ascending)
	return rows, nil
}

// Finalize stores the official result of a registration and notifies the learner.
// A record without any score is refused with ErrNoScores: the zero average shown
// while nothing is entered is a display default, not an academic judgment.
func (svc *Service) Finalize(ctx context.Context, regisID int) (FinalResult, error) {
	rec, res, err := svc.Evaluate(ctx, regisID)
	if err != nil {
		return FinalResult{}, err
	}
	if !res.HasScores() {
		return FinalResult{}, ErrNoScores
	}

	final := FinalResult{
		RegistrationID: regisID,
		CourseID:       rec.CourseID,
		CourseName:     rec.CourseName,
		RoundedAverage: res.Rounded,
		VerdictCode:    res.Verdict,
		Tier:           res.Tier,
		FinalizedAt:    NowFunc().UTC(),
	}
	if err = svc.repo.SaveFinalResult(ctx, final); err != nil {
		return FinalResult{}, errors.Wrap(err, "saving final result")
	}

	if rec.StudentEmail != "" && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: rec.StudentName, Address: rec.StudentEmail}},
			Subject:      "Your result for " + rec.CourseName,
			TemplateName: "grade_result",
			TemplateData: map[string]interface{}{
				"StudentName": rec.StudentName,
				"CourseName":  rec.CourseName,
				"Average":     res.Rounded,
				"Tier":        string(res.Tier),
				"Verdict":     res.Verdict.Label(),
			},
		})
	}
	return final, nil
}

// PassRates returns, per course, the share of finalized results that passed.
func (svc *Service) PassRates(ctx context.Context) ([]PassRate, error) {
	results, err := svc.repo.QueryFinalResults(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying final results")
	}

	byCourse := make(map[int]*PassRate)
	for _, res := range results {
		pr, ok := byCourse[res.CourseID]
		if !ok {
			pr = &PassRate{CourseID: res.CourseID, CourseName: res.CourseName}
			byCourse[res.CourseID] = pr
		}
		pr.Finalized++
		if res.VerdictCode == Passed {
			pr.Passed++
		}
	}

	rates := make([]PassRate, 0, len(byCourse))
	for _, pr := range byCourse {
		pr.Rate = core.Round(float64(pr.Passed)*100/float64(pr.Finalized), 2)
		rates = append(rates, *pr)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].CourseID < rates[j].CourseID })
	return rates, nil
}

// SaveDraft stores the raw values of a score sheet being edited.
func (svc *Service) SaveDraft(ctx context.Context, key DraftKey, values map[int]map[int]string) (Draft, error) {
	draft := Draft{Key: key, Values: values, SavedAt: NowFunc().UTC()}
	if draft.Values == nil {
		draft.Values = make(map[int]map[int]string)
	}
	if err := svc.drafts.SaveDraft(ctx, draft); err != nil {
		return Draft{}, errors.Wrap(err, "saving grade draft")
	}
	return draft, nil
}

func (svc *Service) LoadDraft(ctx context.Context, key DraftKey) (Draft, error) {
	draft, err := svc.drafts.LoadDraft(ctx, key)
	if err != nil {
		return Draft{}, errors.Wrap(err, "loading grade draft")
	}
	return draft, nil
}

func (svc *Service) DiscardDraft(ctx context.Context, key DraftKey) error {
	return errors.Wrap(svc.drafts.ClearDraft(ctx, key), "clearing grade draft")
}

// PreviewDraft evaluates every row of a draft without saving anything.
func (svc *Service) PreviewDraft(ctx context.Context, draft Draft) (map[int]Result, error) {
	cats, err := svc.Categories(ctx)
	if err != nil {
		return nil, err
	}
	results := make(map[int]Result, len(draft.Values))
	for regisID, raw := range draft.Values {
		entries := make([]ScoreEntry, 0, len(cats))
		for _, cat := range cats {
			entries = append(entries, ScoreEntry{Weight: cat.Weight, Score: ParseScore(raw[cat.ID])})
		}
		res, err := Evaluate(entries)
		if err != nil {
			return nil, err
		}
		results[regisID] = res
	}
	return results, nil
}
