package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimdesk/internal/access"
	"claimdesk/internal/claims/models"
	claimstore "claimdesk/internal/claims/store/claim"
	idmodels "claimdesk/internal/identity/models"
	userstore "claimdesk/internal/identity/store/user"
	"claimdesk/internal/platform/filestore"
	policymodels "claimdesk/internal/policies/models"
	policystore "claimdesk/internal/policies/store/policy"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
	"claimdesk/pkg/requestcontext"
)

// scriptRand replays draws, then falls back to a counter so it never
// repeats a number after the script runs out.
type scriptRand struct {
	draws []int
	next  int
}

func (r *scriptRand) IntN(n int) int {
	if len(r.draws) > 0 {
		v := r.draws[0]
		r.draws = r.draws[1:]
		return v % n
	}
	r.next++
	return r.next % n
}

type world struct {
	ctx      context.Context
	p        id.Partition
	claims   *claimstore.InMemory
	users    *userstore.InMemoryUserStore
	root     string
	service  *Service
	policyID id.PolicyID
}

func newWorld(t *testing.T, opts ...Option) *world {
	t.Helper()
	w := &world{
		ctx:    requestcontext.WithTime(context.Background(), time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)),
		p:      id.Partition{TenantID: id.NewTenantID(), Schema: "acme"},
		claims: claimstore.NewInMemory(),
		users:  userstore.New(),
		root:   t.TempDir(),
	}
	policies := policystore.NewInMemory()
	require.NoError(t, w.claims.CreatePartition(w.ctx, w.p.Schema))
	require.NoError(t, w.users.CreatePartition(w.ctx, w.p.Schema))
	require.NoError(t, policies.CreatePartition(w.ctx, w.p.Schema))

	pol := &policymodels.Policy{Number: "1000-2000-3000", TenantID: w.p.TenantID, Type: policymodels.TypeAuto, Active: true}
	require.NoError(t, policies.Create(w.ctx, w.p, pol))
	w.policyID = pol.ID

	files, err := filestore.NewLocal(w.root)
	require.NoError(t, err)
	w.service = New(w.claims, policies, w.users, files, opts...)
	return w
}

func (w *world) staff(t *testing.T, role idmodels.Role, email string) access.Actor {
	t.Helper()
	u, err := idmodels.NewUser(idmodels.NewUserParams{
		Email:        email,
		Username:     strings.Split(email, "@")[0],
		Phone:        "555" + strings.Split(email, "@")[0],
		PasswordHash: "hash",
		Role:         role,
		Scope:        idmodels.ScopeTenant,
		TenantID:     w.p.TenantID,
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.users.Create(w.ctx, w.p, u))
	return access.Actor{UserID: u.ID, Role: role}
}

func TestClaimLifecycleToClosed(t *testing.T) {
	w := newWorld(t)
	desk := w.staff(t, idmodels.RoleCallCenter, "desk@acme.test")
	adjuster := w.staff(t, idmodels.RoleAdjuster, "adj@acme.test")
	manager := w.staff(t, idmodels.RoleManager, "boss@acme.test")

	claim, err := w.service.CreateClaim(w.ctx, w.p, desk, w.policyID,
		&models.CreateClaimRequest{Title: "Burst pipe", IncidentDate: "2026-05-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReported, claim.Status)

	_, err = w.service.AssignClaim(w.ctx, w.p, desk, claim.ID, &models.AssignClaimRequest{UserID: adjuster.UserID.String()})
	require.NoError(t, err)
	mine, err := w.service.AssignedClaims(w.ctx, w.p, adjuster.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.StatusReported, mine[0].Status, "assignment leaves the status alone")

	steps := []struct {
		actor access.Actor
		next  models.Status
	}{
		{adjuster, models.StatusAssigned},
		{adjuster, models.StatusUnderReview},
		{adjuster, models.StatusInvestigation},
		{adjuster, models.StatusWaitingApproval},
		{manager, models.StatusApproved},
		{manager, models.StatusPaymentProcessing},
		{manager, models.StatusPaid},
		{manager, models.StatusClosed},
	}
	for _, step := range steps {
		_, err := w.service.TransitionClaim(w.ctx, w.p, step.actor, claim.ID, step.next)
		require.NoError(t, err, "to %s", step.next)
	}

	for _, next := range models.Statuses() {
		_, err := w.service.TransitionClaim(w.ctx, w.p, manager, claim.ID, next)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "closed -> %s", next)
	}

	detail, err := w.service.GetClaim(w.ctx, w.p, w.policyID, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, detail.Claim.Status)
	assert.Equal(t, "Burst pipe", detail.Claim.Title)
	require.NotNil(t, detail.Claim.AssignedTo)
	assert.Equal(t, adjuster.UserID, *detail.Claim.AssignedTo)
}

func TestWaitingApprovalCannotSkipToPayment(t *testing.T) {
	w := newWorld(t)
	desk := w.staff(t, idmodels.RoleCallCenter, "desk@acme.test")
	senior := w.staff(t, idmodels.RoleSeniorAdjuster, "senior@acme.test")

	claim, err := w.service.CreateClaim(w.ctx, w.p, desk, w.policyID,
		&models.CreateClaimRequest{Title: "Stolen bike", IncidentDate: "2026-04-20"})
	require.NoError(t, err)
	for _, next := range []models.Status{models.StatusAssigned, models.StatusDocumentsRequested, models.StatusWaitingApproval} {
		_, err := w.service.TransitionClaim(w.ctx, w.p, senior, claim.ID, next)
		require.NoError(t, err)
	}

	_, err = w.service.TransitionClaim(w.ctx, w.p, senior, claim.ID, models.StatusPaymentProcessing)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := w.claims.FindByID(w.ctx, w.p, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingApproval, stored.Status)
}

func TestClaimNumbersStayUniqueUnderCollisions(t *testing.T) {
	// The first three draws reproduce a number that is already taken.
	w := newWorld(t, WithRand(&scriptRand{draws: []int{1, 2, 3}, next: 100}))
	desk := w.staff(t, idmodels.RoleCallCenter, "desk@acme.test")

	seeded := &models.Claim{Number: "CLM-0001-0002-0003", PolicyID: w.policyID, Status: models.StatusReported}
	require.NoError(t, w.claims.Create(w.ctx, w.p, seeded))

	seen := map[string]bool{seeded.Number: true}
	for i := 0; i < 1000; i++ {
		c, err := w.service.CreateClaim(w.ctx, w.p, desk, w.policyID,
			&models.CreateClaimRequest{Title: "Claim", IncidentDate: "2026-05-01"})
		require.NoError(t, err)
		require.True(t, models.ValidClaimNumber(c.Number))
		require.False(t, seen[c.Number], "duplicate %s", c.Number)
		seen[c.Number] = true
	}
}

func TestForbiddenAndNotFoundOrdering(t *testing.T) {
	w := newWorld(t)
	desk := w.staff(t, idmodels.RoleCallCenter, "desk@acme.test")
	adjuster := w.staff(t, idmodels.RoleAdjuster, "adj@acme.test")

	t.Run("role gate precedes existence", func(t *testing.T) {
		_, err := w.service.TransitionClaim(w.ctx, w.p, desk, 999, models.StatusAssigned)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("object gate follows existence", func(t *testing.T) {
		err := w.service.DeleteClaim(w.ctx, w.p, adjuster, w.policyID, 999)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestDocumentsFollowTheirClaim(t *testing.T) {
	w := newWorld(t)
	desk := w.staff(t, idmodels.RoleCallCenter, "desk@acme.test")
	adjuster := w.staff(t, idmodels.RoleAdjuster, "adj@acme.test")
	other := w.staff(t, idmodels.RoleAdjuster, "other@acme.test")

	claim, err := w.service.CreateClaim(w.ctx, w.p, desk, w.policyID,
		&models.CreateClaimRequest{Title: "Flooded basement", IncidentDate: "2026-05-02"})
	require.NoError(t, err)

	doc, err := w.service.UploadDocument(w.ctx, w.p, adjuster, claim.ID, Upload{
		Type:     models.DocumentPhoto,
		Filename: "basement.jpg",
		Content:  strings.NewReader("jpeg bytes"),
	})
	require.NoError(t, err)
	stored := filepath.Join(w.root, filepath.FromSlash(doc.FileRef))
	body, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(body))

	err = w.service.DeleteDocument(w.ctx, w.p, other, doc.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	note, err := w.service.AddNote(w.ctx, w.p, adjuster, claim.ID, &models.NoteRequest{Text: "water up to 30cm", Internal: true})
	require.NoError(t, err)
	assert.Equal(t, adjuster.UserID, note.AuthorID)

	require.NoError(t, w.service.DeleteClaim(w.ctx, w.p, desk, w.policyID, claim.ID))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err), "file removed with the claim")
	_, err = w.claims.FindNote(w.ctx, w.p, note.ID)
	assert.Error(t, err)

	_, err = w.service.UploadDocument(w.ctx, w.p, adjuster, claim.ID, Upload{
		Type: models.DocumentOther, Filename: "late.txt", Content: io.NopCloser(strings.NewReader("x")),
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
