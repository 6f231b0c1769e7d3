// Package app composes the LifeOS services into a running application.
// Business logic lives in the service packages; this layer wires them to
// storage and manages their lifecycle.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts, sessions, API keys
//	│   ├── task/           # Planner tasks
//	│   ├── habit/          # Systems, habits and check-ins
//	│   ├── finance/        # Accounts, transactions, goals, subscriptions
//	│   └── ...             # Journal, notifications, assistant, billing
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── services/           # Business logic (users, finance, assistant, ...)
//	├── httpapi/            # REST handlers, middleware, audit trail
//	├── realtime/           # WebSocket hub for live entity updates
//	├── system/             # Background service lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// Construction order inside New matters: entitlements and currency come
// first because most other services consult them, then the user service,
// then everything that publishes notifications or sends mail.
//
// # Adding a New Domain
//
//  1. Create domain models in internal/app/domain/<name>/
//  2. Add a store interface in internal/app/storage/interfaces.go
//  3. Implement it in storage/memory and storage/postgres
//  4. Create the service in internal/app/services/<name>/
//  5. Wire it in application.go and expose routes in httpapi
package app
