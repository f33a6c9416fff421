// Command create-project-manager provisions a staff account with CRM access.
// Running it again with the same arguments is a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
)

func main() {
	email := flag.String("email", "pm@carrigar.com", "Staff email address")
	name := flag.String("name", "Project Manager", "Display name")
	employeeID := flag.String("employee-id", "PM001", "Employee ID")
	department := flag.String("department", "Operations", "Department")
	auth0ID := flag.String("auth0-id", "", "Auth0 subject the manager signs in with")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	pm, userCreated, pmCreated, err := services.EnsureProjectManager(context.Background(), db, services.ProjectManagerSeed{
		Auth0ID:    *auth0ID,
		Email:      *email,
		Name:       *name,
		EmployeeID: *employeeID,
		Department: *department,
	})
	if err != nil {
		log.Fatal("Failed to create project manager:", err)
	}

	if userCreated {
		fmt.Printf("Created staff user %s (%s)\n", pm.User.Email, pm.User.Auth0ID)
	} else {
		fmt.Printf("User %s already exists\n", pm.User.Email)
	}
	if pmCreated {
		fmt.Printf("Created project manager %s in %s\n", pm.EmployeeID, pm.Department)
	} else {
		fmt.Printf("Project manager %s already exists\n", pm.EmployeeID)
	}
}
