package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/realtime"
	assistantsvc "github.com/lifeos-hq/lifeos/internal/app/services/assistant"
	billingsvc "github.com/lifeos-hq/lifeos/internal/app/services/billing"
	currencysvc "github.com/lifeos-hq/lifeos/internal/app/services/currency"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	financesvc "github.com/lifeos-hq/lifeos/internal/app/services/finance"
	habitssvc "github.com/lifeos-hq/lifeos/internal/app/services/habits"
	journalsvc "github.com/lifeos-hq/lifeos/internal/app/services/journal"
	mailersvc "github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	notificationssvc "github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	taskssvc "github.com/lifeos-hq/lifeos/internal/app/services/tasks"
	ticketssvc "github.com/lifeos-hq/lifeos/internal/app/services/tickets"
	userssvc "github.com/lifeos-hq/lifeos/internal/app/services/users"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
	"github.com/lifeos-hq/lifeos/internal/app/system"
	"github.com/lifeos-hq/lifeos/internal/config"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// devJWTSecret signs tokens when no secret is configured. Load warns loudly;
// never deploy with it.
const devJWTSecret = "lifeos-dev-secret-do-not-use-in-production"

// Stores encapsulates persistence dependencies. Nil stores default to one
// shared in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Sessions      storage.SessionStore
	APIKeys       storage.APIKeyStore
	Tasks         storage.TaskStore
	Habits        storage.HabitStore
	Finance       storage.FinanceStore
	Currency      storage.CurrencyStore
	Journal       storage.JournalStore
	Notifications storage.NotificationStore
	Assistant     storage.AssistantStore
	Tickets       storage.TicketStore
	Settings      storage.SettingStore
	Mail          storage.MailStore
	Payments      storage.PaymentStore
}

// Options tunes construction. The zero value builds a working application
// on defaults with external integrations disabled.
type Options struct {
	Config *config.Config
	Log    *logger.Logger

	// Test seams. When set they replace the HTTP-backed integrations the
	// config would otherwise build.
	Completer           assistantsvc.Completer
	MailSender          mailersvc.Sender
	RateFetcher         currencysvc.Fetcher
	PaystackVerifier    billingsvc.Verifier
	FlutterwaveVerifier billingsvc.Verifier
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     *config.Config

	Users         *userssvc.Service
	Entitlements  *entitlements.Service
	Currency      *currencysvc.Service
	Mailer        *mailersvc.Service
	Hub           *realtime.Hub
	Tasks         *taskssvc.Service
	Habits        *habitssvc.Service
	Journal       *journalsvc.Service
	Notifications *notificationssvc.Service
	Assistant     *assistantsvc.Service
	Finance       *financesvc.Service
	Tickets       *ticketssvc.Service
	Billing       *billingsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}
	if stores.APIKeys == nil {
		stores.APIKeys = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Habits == nil {
		stores.Habits = mem
	}
	if stores.Finance == nil {
		stores.Finance = mem
	}
	if stores.Currency == nil {
		stores.Currency = mem
	}
	if stores.Journal == nil {
		stores.Journal = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Assistant == nil {
		stores.Assistant = mem
	}
	if stores.Tickets == nil {
		stores.Tickets = mem
	}
	if stores.Settings == nil {
		stores.Settings = mem
	}
	if stores.Mail == nil {
		stores.Mail = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}

	manager := system.NewManager()
	httpClient := &http.Client{Timeout: 15 * time.Second}

	ent := entitlements.New(stores.Settings, log)
	rates := currencysvc.New(stores.Currency, log)
	hub := realtime.NewHub(log)

	sender := opts.MailSender
	if sender == nil && cfg.Mail.BaseURL != "" {
		httpSender, err := mailersvc.NewHTTPSender(httpClient, cfg.Mail.BaseURL, cfg.Mail.APIKey, cfg.Mail.From, log)
		if err != nil {
			return nil, fmt.Errorf("configure mail sender: %w", err)
		}
		sender = httpSender
	}
	if sender == nil {
		log.Warn("LIFEOS_MAIL_BASE_URL not set; outbound email disabled")
	}
	mail := mailersvc.New(stores.Mail, sender, log)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = devJWTSecret
		log.Warn("LIFEOS_JWT_SECRET not set; using the development secret")
	}
	usersService := userssvc.New(stores.Users, stores.Sessions, stores.APIKeys, jwtSecret, cfg.Auth.SessionTTL, log)
	usersService.AttachMailer(mail)
	usersService.AttachCurrency(rates)

	completer := opts.Completer
	if completer == nil && cfg.Assistant.BaseURL != "" {
		httpCompleter, err := assistantsvc.NewHTTPCompleter(httpClient, cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.Model, log)
		if err != nil {
			return nil, fmt.Errorf("configure assistant gateway: %w", err)
		}
		completer = httpCompleter
	}
	if completer == nil {
		log.Warn("LIFEOS_AI_BASE_URL not set; assistant falls back to rule-based replies")
	}

	assistantService := assistantsvc.New(stores.Assistant, stores.Tasks, stores.Habits, ent, completer, log)
	if err := assistantService.SeedPersonas(context.Background()); err != nil {
		return nil, fmt.Errorf("seed personas: %w", err)
	}

	notificationsService := notificationssvc.New(stores.Notifications, log)
	notificationsService.AttachHub(hub)

	tasksService := taskssvc.New(stores.Tasks, stores.Users, log)
	tasksService.AttachHub(hub)
	habitsService := habitssvc.New(stores.Habits, stores.Users, log)
	habitsService.AttachHub(hub)
	journalService := journalsvc.New(stores.Journal, stores.Users, log)
	journalService.AttachHub(hub)

	financeService := financesvc.New(stores.Finance, stores.Users, rates, ent, log)
	financeService.AttachHub(hub)
	financeService.AttachNotifier(notificationsService)
	financeService.AttachMailer(mail)
	financeService.AttachAssistant(assistantService)

	ticketsService := ticketssvc.New(stores.Tickets, stores.Users, log)
	ticketsService.AttachHub(hub)
	ticketsService.AttachNotifier(notificationsService)
	ticketsService.AttachMailer(mail)

	billingService := billingsvc.New(stores.Payments, usersService, log)
	billingService.AttachNotifier(notificationsService)
	billingService.AttachMailer(mail)
	if cfg.Billing.PaystackSecret != "" {
		verifier := opts.PaystackVerifier
		if verifier == nil {
			v, err := billingsvc.NewPaystackVerifier(httpClient, cfg.Billing.PaystackBaseURL, cfg.Billing.PaystackSecret, log)
			if err != nil {
				return nil, fmt.Errorf("configure paystack: %w", err)
			}
			verifier = v
		}
		billingService.ConfigurePaystack(cfg.Billing.PaystackSecret, verifier)
	} else {
		log.Warn("LIFEOS_PAYSTACK_SECRET not set; paystack webhooks disabled")
	}
	if cfg.Billing.FlutterwaveHash != "" && cfg.Billing.FlutterwaveSecret != "" {
		verifier := opts.FlutterwaveVerifier
		if verifier == nil {
			v, err := billingsvc.NewFlutterwaveVerifier(httpClient, cfg.Billing.FlutterwaveBaseURL, cfg.Billing.FlutterwaveSecret, log)
			if err != nil {
				return nil, fmt.Errorf("configure flutterwave: %w", err)
			}
			verifier = v
		}
		billingService.ConfigureFlutterwave(cfg.Billing.FlutterwaveHash, verifier)
	} else {
		log.Warn("LIFEOS_FLUTTERWAVE_HASH not set; flutterwave webhooks disabled")
	}

	refresher := currencysvc.NewRefresher(rates, cfg.Currency.RefreshInterval, log)
	if fetcher := opts.RateFetcher; fetcher != nil {
		refresher.WithFetcher(fetcher)
	} else if cfg.Currency.RatesURL != "" {
		fetcher, err := currencysvc.NewHTTPFetcher(httpClient, cfg.Currency.RatesURL, log)
		if err != nil {
			return nil, fmt.Errorf("configure rate fetcher: %w", err)
		}
		refresher.WithFetcher(fetcher)
	} else {
		log.Warn("LIFEOS_RATES_URL not set; currency refresher idles")
	}

	engine := notificationssvc.NewEngine(notificationsService, stores.Users, stores.Tasks, stores.Habits, stores.Finance, stores.Journal, ent, mail, log)
	pruner := userssvc.NewSessionPruner(usersService, cfg.Engine.SessionPruneInterval, log)

	for _, svc := range []system.Service{refresher, engine, pruner} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:       manager,
		log:           log,
		cfg:           cfg,
		Users:         usersService,
		Entitlements:  ent,
		Currency:      rates,
		Mailer:        mail,
		Hub:           hub,
		Tasks:         tasksService,
		Habits:        habitsService,
		Journal:       journalService,
		Notifications: notificationsService,
		Assistant:     assistantService,
		Finance:       financeService,
		Tickets:       ticketsService,
		Billing:       billingService,
	}, nil
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
