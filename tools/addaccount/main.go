// Command addaccount creates an extra account in the reelhouse database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"reelhouse/config"
	"reelhouse/internal/database"
	"reelhouse/models"
	"reelhouse/services/accounts"
)

func main() {
	var (
		configPath = flag.String("config", "data/settings.json", "Path to settings.json")
		username   = flag.String("username", "", "Account username")
		role       = flag.String("role", string(models.RoleStandard), "Account role (standard or administrator)")
	)
	flag.Parse()

	password := os.Getenv("REELHOUSE_NEW_PASSWORD")
	if *username == "" || password == "" {
		log.Fatalf("usage: REELHOUSE_NEW_PASSWORD=... addaccount -username NAME [-role standard|administrator]")
	}

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	settings.ApplyEnv(os.Getenv)

	ctx := context.Background()
	db, err := database.Open(ctx, settings.Database.Path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	svc, err := accounts.NewService(db)
	if err != nil {
		log.Fatalf("init accounts: %v", err)
	}
	account, err := svc.Create(ctx, *username, password, models.Role(*role))
	if err != nil {
		log.Fatalf("create account: %v", err)
	}
	fmt.Printf("created %s account %q\n", account.Role, account.Username)
}
