package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

type seriesRow struct {
	ID                 uint       `gorm:"primaryKey"`
	SeriesID           string     `gorm:"uniqueIndex;not null"`
	Finished           bool       `gorm:"not null;default:false"`
	StartTimeScheduled *time.Time
	Patch              string `gorm:"not null;default:''"`
	Team1ID            string
	Team1Name          string `gorm:"index"`
	Team1Logo          string
	Team1Score         *int
	Team2ID            string
	Team2Name          string `gorm:"index"`
	Team2Logo          string
	Team2Score         *int
}

func (seriesRow) TableName() string { return "series" }

func (r seriesRow) series() Series {
	return Series{
		ID:        r.SeriesID,
		Finished:  r.Finished,
		StartTime: r.StartTimeScheduled,
		Patch:     r.Patch,
		Team1:     Side{ID: r.Team1ID, Name: r.Team1Name, Logo: r.Team1Logo, Score: r.Team1Score},
		Team2:     Side{ID: r.Team2ID, Name: r.Team2Name, Logo: r.Team2Logo, Score: r.Team2Score},
	}
}

type participantRow struct {
	ID           uint   `gorm:"primaryKey"`
	SeriesID     string `gorm:"not null;index:idx_participant_series_player,unique"`
	PlayerID     string `gorm:"not null;index:idx_participant_series_player,unique"`
	PlayerName   string `gorm:"not null;index"`
	ChampionName string `gorm:"not null"`
	StatsJSON    string `gorm:"type:jsonb;not null;default:'{}'"`
}

func (participantRow) TableName() string { return "participants" }

type eventLogRow struct {
	ID       uint   `gorm:"primaryKey"`
	SeriesID string `gorm:"uniqueIndex;not null"`
	EventLog string `gorm:"type:text;not null"`
}

func (eventLogRow) TableName() string { return "event_logs" }

type settingRow struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (settingRow) TableName() string { return "settings" }

// Postgres stores data in a shared PostgreSQL database through gorm.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&seriesRow{}, &participantRow{}, &eventLogRow{}, &settingRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) UpsertSeries(ctx context.Context, in Series) (Series, Change, error) {
	var (
		out    Series
		change Change
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row seriesRow
		err := tx.Where("series_id = ?", in.ID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = seriesRow{
				SeriesID:           in.ID,
				Finished:           in.Finished,
				StartTimeScheduled: in.StartTime,
				Team1ID:            in.Team1.ID,
				Team1Name:          in.Team1.Name,
				Team1Logo:          in.Team1.Logo,
				Team2ID:            in.Team2.ID,
				Team2Name:          in.Team2.Name,
				Team2Logo:          in.Team2.Logo,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			out, change = row.series(), Inserted
			return nil
		}
		if err != nil {
			return err
		}

		existing := row.series()
		if existing.sameDetails(in) {
			out, change = existing, Unchanged
			return nil
		}
		out, change = existing.withDetails(in), Updated
		return tx.Model(&seriesRow{}).Where("series_id = ?", in.ID).Updates(map[string]any{
			"finished":             out.Finished,
			"start_time_scheduled": out.StartTime,
			"team1_id":             out.Team1.ID,
			"team1_name":           out.Team1.Name,
			"team1_logo":           out.Team1.Logo,
			"team2_id":             out.Team2.ID,
			"team2_name":           out.Team2.Name,
			"team2_logo":           out.Team2.Logo,
		}).Error
	})
	if err != nil {
		return Series{}, Unchanged, fmt.Errorf("store: upsert series %s: %w", in.ID, err)
	}
	return out, change, nil
}

func (p *Postgres) GetSeries(ctx context.Context, id string) (Series, error) {
	var row seriesRow
	err := p.db.WithContext(ctx).Where("series_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Series{}, ErrNotFound
	}
	if err != nil {
		return Series{}, fmt.Errorf("store: get series %s: %w", id, err)
	}
	return row.series(), nil
}

func (p *Postgres) ListSeries(ctx context.Context) ([]Series, error) {
	var rows []seriesRow
	if err := p.db.WithContext(ctx).Order("series_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list series: %w", err)
	}
	out := make([]Series, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.series())
	}
	return out, nil
}

func (p *Postgres) UpdateResult(ctx context.Context, id, patch string, score1, score2 int) error {
	res := p.db.WithContext(ctx).Model(&seriesRow{}).Where("series_id = ?", id).Updates(map[string]any{
		"patch":       patch,
		"team1_score": score1,
		"team2_score": score2,
	})
	if res.Error != nil {
		return fmt.Errorf("store: update result %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AddParticipants(ctx context.Context, seriesID string, ps []Participant) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	rows := make([]participantRow, 0, len(ps))
	for _, pt := range ps {
		stats := string(pt.Stats)
		if stats == "" {
			stats = "{}"
		}
		rows = append(rows, participantRow{
			SeriesID:     seriesID,
			PlayerID:     pt.PlayerID,
			PlayerName:   pt.PlayerName,
			ChampionName: pt.ChampionName,
			StatsJSON:    stats,
		})
	}
	res := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}, {Name: "player_id"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("store: add participants %s: %w", seriesID, res.Error)
	}
	return int(res.RowsAffected), nil
}

func (p *Postgres) Participants(ctx context.Context, seriesID string) ([]Participant, error) {
	var rows []participantRow
	if err := p.db.WithContext(ctx).Where("series_id = ?", seriesID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: participants %s: %w", seriesID, err)
	}
	out := make([]Participant, 0, len(rows))
	for _, r := range rows {
		out = append(out, Participant{
			SeriesID:     r.SeriesID,
			PlayerID:     r.PlayerID,
			PlayerName:   r.PlayerName,
			ChampionName: r.ChampionName,
			Stats:        []byte(r.StatsJSON),
		})
	}
	return out, nil
}

func (p *Postgres) SaveEventLog(ctx context.Context, seriesID string, events []engine.FeedEvent) error {
	raw, err := encodeLog(events)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_log"}),
	}).Create(&eventLogRow{SeriesID: seriesID, EventLog: raw}).Error
	if err != nil {
		return fmt.Errorf("store: save event log %s: %w", seriesID, err)
	}
	return nil
}

func (p *Postgres) EventLog(ctx context.Context, seriesID string) ([]engine.FeedEvent, error) {
	var row eventLogRow
	err := p.db.WithContext(ctx).Where("series_id = ?", seriesID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: event log %s: %w", seriesID, err)
	}
	return decodeLog(row.EventLog)
}

func (p *Postgres) SearchPlayers(ctx context.Context, query string, limit int) ([]string, error) {
	var names []string
	err := p.db.WithContext(ctx).Model(&participantRow{}).
		Distinct("player_name").
		Where("player_name ILIKE ?", "%"+query+"%").
		Order("player_name").
		Limit(searchLimit(limit)).
		Pluck("player_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("store: search players: %w", err)
	}
	return names, nil
}

func (p *Postgres) SearchTeams(ctx context.Context, query string, limit int) ([]TeamRef, error) {
	var out []TeamRef
	err := p.db.WithContext(ctx).Raw(`SELECT DISTINCT ON (name) id, name, logo FROM (
			SELECT team1_id AS id, team1_name AS name, team1_logo AS logo FROM series
			UNION
			SELECT team2_id, team2_name, team2_logo FROM series
		) t WHERE name <> '' AND name ILIKE ? ORDER BY name LIMIT ?`,
		"%"+query+"%", searchLimit(limit)).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: search teams: %w", err)
	}
	return out, nil
}

func (p *Postgres) Setting(ctx context.Context, key string) (string, error) {
	var row settingRow
	err := p.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: setting %s: %w", key, err)
	}
	return row.Value, nil
}

func (p *Postgres) SetSetting(ctx context.Context, key, value string) error {
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&settingRow{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("store: set setting %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context) (ClearStats, error) {
	var st ClearStats
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&eventLogRow{})
		if res.Error != nil {
			return res.Error
		}
		st.EventLogs = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&participantRow{})
		if res.Error != nil {
			return res.Error
		}
		st.Participants = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&seriesRow{})
		if res.Error != nil {
			return res.Error
		}
		st.Series = res.RowsAffected
		return nil
	})
	if err != nil {
		return ClearStats{}, fmt.Errorf("store: clear: %w", err)
	}
	return st, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
