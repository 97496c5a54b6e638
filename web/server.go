// Package web exposes the operational status endpoint.
package web

import (
	"net/http"
	"runtime"
	"time"

	"giveaway-bot/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Server struct {
	addr    string
	db      *sqlx.DB
	session *discordgo.Session
	started time.Time
	engine  *gin.Engine
}

func NewServer(addr string, db *sqlx.DB, session *discordgo.Session, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		addr:    addr,
		db:      db,
		session: session,
		started: time.Now(),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/status", s.status)
	return s
}

// Run blocks serving HTTP until the process exits.
func (s *Server) Run() {
	if err := s.engine.Run(s.addr); err != nil {
		log.Error().Err(err).Str("addr", s.addr).Msg("status server stopped")
	}
}

func (s *Server) status(c *gin.Context) {
	cpuPercent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}
	memUsed := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.UsedPercent
	}

	activeGiveaways, err := database.CountActiveGiveaways(s.db)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count active giveaways")
	}
	pendingTimers, err := database.CountTimers(s.db)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count pending timers")
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPercent,
		"memory_percent":   memUsed,
		"gateway_latency":  s.session.HeartbeatLatency().String(),
		"guilds":           len(s.session.State.Guilds),
		"active_giveaways": activeGiveaways,
		"pending_timers":   pendingTimers,
	})
}
