package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile is one website account as served by the profile service.
type RemoteProfile struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors website accounts into students so that invites
// made before a sign-up become payable and invite usernames stay current.
type ProfileSyncWorker struct {
	db           *gorm.DB
	log          *zap.Logger
	invites      *services.InviteService
	stats        *services.StatsService
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	now          func() time.Time

	since time.Time
}

func NewProfileSyncWorker(db *gorm.DB, invites *services.InviteService, stats *services.StatsService,
	baseURL, serviceToken string, interval time.Duration, log *zap.Logger) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		db:           db,
		log:          log,
		invites:      invites,
		stats:        stats,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: "/api/v1/public/profiles",
		serviceToken: serviceToken,
		httpClient:   utils.NewHTTPClient(30 * time.Second),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run syncs immediately and then on every tick until ctx is done.
func (w *ProfileSyncWorker) Run(ctx context.Context) error {
	w.log.Info("🔁 Starting profile sync worker", zap.Duration("interval", w.interval))
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("⚠️ Initial profile sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ Profile sync failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("⏹️ Profile sync worker stopped")
			return nil
		}
	}
}

// SyncOnce pulls every profile changed since the last successful batch.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	profiles, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	var ids []string
	latest := w.since
	for _, p := range profiles {
		id := strings.TrimSpace(p.ExternalID)
		if id == "" {
			id = strings.TrimSpace(p.ID)
		}
		if id == "" {
			continue
		}

		st := models.Student{ID: id, Username: p.Username, Email: p.Email, SignedUpToWebsite: true}
		st.UpdatedAt = p.UpdatedAt
		if st.UpdatedAt.IsZero() {
			st.UpdatedAt = w.now()
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "email", "search_key", "signed_up_to_website", "updated_at"}),
		}).Create(&st).Error; err != nil {
			w.log.Warn("⚠️ Failed to upsert student", zap.String("student_id", id), zap.Error(err))
			continue
		}
		if err := w.stats.EnsureStatsRecords(ctx, id, w.now().Year()); err != nil {
			w.log.Warn("⚠️ Failed to ensure stats records", zap.String("student_id", id), zap.Error(err))
		}
		ids = append(ids, id)
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}

	if err := w.refreshInviters(ctx, ids); err != nil {
		return len(ids), err
	}
	w.since = latest
	w.log.Info("✅ Profiles synced", zap.Int("received", len(profiles)), zap.Int("upserted", len(ids)))
	return len(ids), nil
}

// refreshInviters rewrites the cached invited usernames of everyone who
// invited one of the synced students.
func (w *ProfileSyncWorker) refreshInviters(ctx context.Context, invitedIDs []string) error {
	if len(invitedIDs) == 0 {
		return nil
	}
	var inviters []string
	if err := w.db.WithContext(ctx).Model(&models.Invite{}).
		Where("invited_id IN ?", invitedIDs).
		Distinct().Pluck("inviter_id", &inviters).Error; err != nil {
		return err
	}
	for _, inviterID := range inviters {
		if _, err := w.invites.SyncInviteUsernames(ctx, inviterID); err != nil {
			return fmt.Errorf("sync usernames for %s: %w", inviterID, err)
		}
	}
	return nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode profile service response: %w", err)
	}
	return out.Users, nil
}
