package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	domainerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	"chipsplit/contexts/game-session/party-service/ports"
	"chipsplit/internal/platform/partycode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&partyModel{},
		&playerModel{},
		&submissionModel{},
		&settlementModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateParty(ctx context.Context, party entities.Party, host entities.Player) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		partyRow := partyModelFromEntity(party)
		if err := tx.Create(&partyRow).Error; err != nil {
			return err
		}
		hostRow := playerModelFromEntity(host)
		return tx.Create(&hostRow).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrCodeConflict
		}
		return r.logError("party_repo_create_party_failed", err, "party_code", party.Code)
	}
	return nil
}

func (r *Repository) GetParty(ctx context.Context, code string) (entities.Party, error) {
	var row partyModel
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.TrimSpace(code)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Party{}, domainerrors.ErrPartyNotFound
		}
		return entities.Party{}, r.logError("party_repo_get_party_failed", err, "party_code", strings.TrimSpace(code))
	}
	return row.toEntity(), nil
}

func (r *Repository) AddPlayer(ctx context.Context, player entities.Player) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party, err := lockParty(tx, player.PartyCode)
		if err != nil {
			return err
		}
		if party.Status != string(entities.PartyStatusOpen) {
			return domainerrors.ErrPartyClosed
		}
		row := playerModelFromEntity(player)
		return tx.Create(&row).Error
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("party_repo_add_player_failed", err,
			"party_code", player.PartyCode,
			"player_id", player.PlayerID,
		)
	}
	return nil
}

func (r *Repository) GetPlayer(ctx context.Context, code string, playerID string) (entities.Player, error) {
	var row playerModel
	err := r.db.WithContext(ctx).
		Where("party_code = ?", strings.TrimSpace(code)).
		Where("id = ?", strings.TrimSpace(playerID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, partyErr := r.GetParty(ctx, code); partyErr != nil {
				return entities.Player{}, partyErr
			}
			return entities.Player{}, domainerrors.ErrPlayerNotFound
		}
		return entities.Player{}, r.logError("party_repo_get_player_failed", err,
			"party_code", strings.TrimSpace(code),
			"player_id", strings.TrimSpace(playerID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPlayers(ctx context.Context, code string) ([]entities.Player, error) {
	var rows []playerModel
	if err := r.db.WithContext(ctx).
		Where("party_code = ?", strings.TrimSpace(code)).
		Order("joined_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("party_repo_list_players_failed", err, "party_code", strings.TrimSpace(code))
	}
	players := make([]entities.Player, 0, len(rows))
	for _, row := range rows {
		players = append(players, row.toEntity())
	}
	return players, nil
}

func (r *Repository) AppendSubmission(ctx context.Context, submission entities.Submission) (entities.Submission, error) {
	var stored entities.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party, err := lockParty(tx, submission.PartyCode)
		if err != nil {
			return err
		}
		if party.Status != string(entities.PartyStatusOpen) {
			return domainerrors.ErrPartyClosed
		}

		var playerCount int64
		if err := tx.Model(&playerModel{}).
			Where("party_code = ?", party.Code).
			Where("id = ?", submission.PlayerID).
			Count(&playerCount).Error; err != nil {
			return err
		}
		if playerCount == 0 {
			return domainerrors.ErrPlayerNotFound
		}

		// The row lock on the party makes this increment the single point of
		// serialization for sequence assignment.
		next := party.NextSequence + 1
		if err := tx.Model(&partyModel{}).
			Where("code = ?", party.Code).
			Update("next_sequence", next).Error; err != nil {
			return err
		}

		submission.SequenceNumber = next
		row, err := submissionModelFromEntity(submission)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		stored = submission
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Submission{}, err
		}
		return entities.Submission{}, r.logError("party_repo_append_submission_failed", err,
			"party_code", submission.PartyCode,
			"player_id", submission.PlayerID,
		)
	}
	return stored, nil
}

func (r *Repository) ListSubmissions(ctx context.Context, code string) ([]entities.Submission, error) {
	var rows []submissionModel
	if err := r.db.WithContext(ctx).
		Where("party_code = ?", strings.TrimSpace(code)).
		Order("sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("party_repo_list_submissions_failed", err, "party_code", strings.TrimSpace(code))
	}
	submissions := make([]entities.Submission, 0, len(rows))
	for _, row := range rows {
		submission, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, nil
}

func (r *Repository) LatestSubmission(ctx context.Context, code string, playerID string) (entities.Submission, bool, error) {
	var row submissionModel
	err := r.db.WithContext(ctx).
		Where("party_code = ?", strings.TrimSpace(code)).
		Where("player_id = ?", strings.TrimSpace(playerID)).
		Order("sequence_number DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Submission{}, false, nil
		}
		return entities.Submission{}, false, r.logError("party_repo_latest_submission_failed", err,
			"party_code", strings.TrimSpace(code),
			"player_id", strings.TrimSpace(playerID),
		)
	}
	submission, err := row.toEntity()
	if err != nil {
		return entities.Submission{}, false, err
	}
	return submission, true, nil
}

func (r *Repository) LatestSubmissions(ctx context.Context, code string) (map[string]entities.Submission, error) {
	submissions, err := r.ListSubmissions(ctx, code)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]entities.Submission)
	for _, submission := range submissions {
		latest[submission.PlayerID] = submission
	}
	return latest, nil
}

func (r *Repository) BeginSettlement(ctx context.Context, code string) (entities.PartyStatus, error) {
	var prior entities.PartyStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party, err := lockParty(tx, code)
		if err != nil {
			return err
		}
		prior = entities.PartyStatus(party.Status)
		if prior != entities.PartyStatusOpen {
			return nil
		}
		return tx.Model(&partyModel{}).
			Where("code = ?", party.Code).
			Update("status", string(entities.PartyStatusEnding)).Error
	})
	if err != nil {
		if isDomainError(err) {
			return "", err
		}
		return "", r.logError("party_repo_begin_settlement_failed", err, "party_code", strings.TrimSpace(code))
	}
	return prior, nil
}

func (r *Repository) CompleteSettlement(ctx context.Context, settlement entities.Settlement, endedAt time.Time) error {
	row, err := settlementModelFromEntity(settlement)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party, err := lockParty(tx, settlement.PartyCode)
		if err != nil {
			return err
		}
		if party.Status != string(entities.PartyStatusEnding) {
			return domainerrors.ErrSettlementInProgress
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&partyModel{}).
			Where("code = ?", party.Code).
			Updates(map[string]any{
				"status":   string(entities.PartyStatusEnded),
				"ended_at": endedAt.UTC(),
			}).Error
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("party_repo_complete_settlement_failed", err, "party_code", settlement.PartyCode)
	}
	return nil
}

func (r *Repository) AbortSettlement(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Model(&partyModel{}).
		Where("code = ?", strings.TrimSpace(code)).
		Where("status = ?", string(entities.PartyStatusEnding)).
		Update("status", string(entities.PartyStatusOpen)).Error
	if err != nil {
		return r.logError("party_repo_abort_settlement_failed", err, "party_code", strings.TrimSpace(code))
	}
	return nil
}

func (r *Repository) GetSettlement(ctx context.Context, code string) (entities.Settlement, error) {
	var row settlementModel
	err := r.db.WithContext(ctx).
		Where("party_code = ?", strings.TrimSpace(code)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Settlement{}, domainerrors.ErrSettlementNotFound
		}
		return entities.Settlement{}, r.logError("party_repo_get_settlement_failed", err, "party_code", strings.TrimSpace(code))
	}
	return row.toEntity()
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		ID:           strings.TrimSpace(envelope.EventID),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.ID == "" {
		return domainerrors.ErrInvalidInput
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return r.logError("party_repo_append_outbox_failed", err, "outbox_id", row.ID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("party_repo_list_pending_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	result := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &ts,
		})
	if result.Error != nil {
		return r.logError("party_repo_mark_outbox_published_failed", result.Error, "outbox_id", strings.TrimSpace(outboxID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxNotFound
	}
	return nil
}

func lockParty(tx *gorm.DB, code string) (partyModel, error) {
	var row partyModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", strings.TrimSpace(code)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return partyModel{}, domainerrors.ErrPartyNotFound
		}
		return partyModel{}, err
	}
	return row, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "game-session/party-service",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("party repository operation failed", fields...)
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrPartyNotFound) ||
		errors.Is(err, domainerrors.ErrPlayerNotFound) ||
		errors.Is(err, domainerrors.ErrPartyClosed) ||
		errors.Is(err, domainerrors.ErrSettlementInProgress) ||
		errors.Is(err, domainerrors.ErrSettlementNotFound)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type CodeGenerator struct{}

func (CodeGenerator) NewCode(_ context.Context) (string, error) {
	return partycode.NewCode(5)
}

type TokenGenerator struct{}

func (TokenGenerator) NewToken(_ context.Context) (string, error) {
	return partycode.NewToken(24)
}
