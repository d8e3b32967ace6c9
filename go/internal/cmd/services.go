package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/config"
	"github.com/mcdev12/roomboard/go/internal/gateway"
	"github.com/mcdev12/roomboard/go/internal/liveview"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/rooms"
	"github.com/mcdev12/roomboard/go/internal/sections"
	"github.com/mcdev12/roomboard/go/internal/statuses"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/timer"
	"github.com/mcdev12/roomboard/go/internal/users"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Auth     *auth.Service
	Users    *users.Service
	Sections *sections.Service
	Statuses *statuses.Service
	Rooms    *rooms.Service
	Gateway  *gateway.Service
}

func setupServices(docs store.Store, cfg config.Config, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Repository layer → App layer → Service layer

	// Users and sessions
	userRepo := users.NewRepository(docs)
	userApp := users.NewApp(userRepo, clock, cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock)
	authService := auth.NewService(userApp, tokens)
	userService := users.NewService(userApp, authService)

	// Statuses
	statusRepo := statuses.NewRepository(docs)
	statusApp := statuses.NewApp(statusRepo, statusPresets(cfg.StatusPresets))
	statusService := statuses.NewService(statusApp)

	// Sections
	sectionRepo := sections.NewRepository(docs)
	sectionApp := sections.NewApp(sectionRepo, statusApp, clock)
	sectionService := sections.NewService(sectionApp)

	// Rooms
	roomRepo := rooms.NewRepository(docs)
	roomApp := rooms.NewApp(roomRepo, statusApp, clock)
	roomService := rooms.NewService(roomApp)

	// Board gateway
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Board = liveview.Config{
		Clock:        clock,
		TickInterval: cfg.Board.TickInterval,
		WriteTimeout: cfg.Board.WriteTimeout,
		OnExpire: func(ref timer.RoomRef, _ timer.State) {
			log.Info().
				Str("section_id", ref.SectionID).
				Str("room_id", ref.RoomID).
				Msg("countdown finished")
		},
	}
	gatewayService := gateway.NewService(gatewayConfig, docs, clock)

	return &Services{
		Auth:     authService,
		Users:    userService,
		Sections: sectionService,
		Statuses: statusService,
		Rooms:    roomService,
		Gateway:  gatewayService,
	}, nil
}

func statusPresets(presets []config.StatusPreset) []statuses.CreateStatusRequest {
	out := make([]statuses.CreateStatusRequest, 0, len(presets))
	for _, p := range presets {
		out = append(out, statuses.CreateStatusRequest{
			Name:       p.Name,
			TimerType:  models.TimerType(p.TimerType),
			TargetTime: p.TargetTime,
			Color:      p.Color,
		})
	}
	return out
}
