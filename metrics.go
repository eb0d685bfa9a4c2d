package wurstminebot

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus collectors of one bot.
type metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	logEvents     *prometheus.CounterVec
	tweets        *prometheus.CounterVec
	onlinePlayers prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wurstminebot_commands_total",
			Help: "Commands run, by command and result.",
		}, []string{"command", "result"}),
		logEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wurstminebot_log_events_total",
			Help: "Minecraft log events handled, by kind.",
		}, []string{"kind"}),
		tweets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wurstminebot_tweets_total",
			Help: "Tweets attempted, by result.",
		}, []string{"result"}),
		onlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wurstminebot_online_players",
			Help: "Players last seen online on the Minecraft server.",
		}),
	}
	m.registry.MustRegister(m.commands, m.logEvents, m.tweets, m.onlinePlayers)
	return m
}

func (m *metrics) command(name, result string) {
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *metrics) logEvent(kind string) {
	m.logEvents.WithLabelValues(kind).Inc()
}

func (m *metrics) tweet(result string) {
	m.tweets.WithLabelValues(result).Inc()
}

type statusDoc struct {
	Nick              string   `json:"nick"`
	OnlinePlayers     []string `json:"online_players"`
	SpecialStatus     string   `json:"special_status,omitempty"`
	Topic             string   `json:"topic,omitempty"`
	AchievementTweets bool     `json:"achievement_tweets"`
	DeathTweets       bool     `json:"death_tweets"`
	Version           string   `json:"version"`
}

func (b *Bot) status() *statusDoc {
	config := b.config.Get()
	b.mu.Lock()
	doc := &statusDoc{
		Nick:          b.nick,
		OnlinePlayers: append([]string{}, b.onlinePlayers...),
		SpecialStatus: b.specialStatus,
		Version:       b.version,
	}
	b.mu.Unlock()
	doc.Topic = b.topics.Current(config.IRC.MainChannel)
	doc.AchievementTweets = b.achievementTweets.On()
	doc.DeathTweets = b.deathTweets.On()
	return doc
}

func (b *Bot) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(b.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(b.status())
	})
	return r
}

func (b *Bot) startHTTP(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %v", addr, err)
	}
	logf("[http] Serving status on %s", l.Addr())
	b.httpServer = &http.Server{Handler: b.router(), ReadHeaderTimeout: 10 * time.Second}
	b.tomb.Go(func() error {
		err := b.httpServer.Serve(l)
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("status server failed: %v", err)
	})
	return nil
}
