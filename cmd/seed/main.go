// Package main seeds a Midas database with demo users, tags, projects and tasks.
//
// Usage:
//
//	DATA_PATH=~/midas go run ./cmd/seed
//	DATA_PATH=~/midas go run ./cmd/seed --users 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/midasapp/midas-server/internal/auth"
	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/logger"
	"github.com/midasapp/midas-server/internal/service"
	"github.com/midasapp/midas-server/internal/session"
	"github.com/midasapp/midas-server/internal/store/sqlite"
	"github.com/midasapp/midas-server/internal/tagdiff"
	"github.com/midasapp/midas-server/internal/validation"
)

var (
	userCount = flag.Int("users", 5, "Number of demo users to create")
	password  = flag.String("password", "midas-demo-password", "Password for every demo user")
)

// catalogue is the demo tag set, by type.
var catalogue = map[domain.TagType][]string{
	domain.TagTypeSkill:      {"Go", "Design", "Writing", "Data Analysis"},
	domain.TagTypeTopic:      {"Climate", "Education", "Health"},
	domain.TagTypeLocation:   {"Berlin", "Lagos", "Remote"},
	domain.TagTypeAgency:     {"City Council", "Parks Department"},
	domain.TagTypeTaskLength: {"Short", "Long"},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/midas")
	}
	dbPath := filepath.Join(dataPath, "midas.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	lg := logger.New(logger.Config{Level: logger.ParseLevel("warn")})

	st, err := sqlite.Open(dbPath, lg.Logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// Seeded users sign in through the real server; these sessions are throwaway.
	sessions, err := session.Open("", lg.Logger)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer sessions.Close()

	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	v := validation.New()
	authSvc := service.NewAuthService(st, sessions, tokens, v, lg.Logger)
	tagSvc := service.NewTagService(st, nil, service.TagOptions{Duplicates: tagdiff.DuplicatesIndependent, Concurrency: 4}, lg.Logger)
	projectSvc := service.NewProjectService(st, v, 4, lg.Logger)
	taskSvc := service.NewTaskService(st, tagSvc, v, lg.Logger)

	ctx := context.Background()

	tags := seedTags(ctx, tagSvc)
	fmt.Printf("Catalogue ready: %d tag types\n", len(tags))

	for n := range *userCount {
		username := fmt.Sprintf("demo%d", n+1)
		resp, err := authSvc.Register(ctx, service.RegisterRequest{
			Username: username,
			Name:     fmt.Sprintf("Demo User %d", n+1),
			Email:    username + "@example.com",
			Password: *password,
		}, service.ClientInfo{UserAgent: "midas-seed"})
		if err != nil {
			fmt.Printf("  skip %s: %v\n", username, err)
			continue
		}
		userID := resp.User.ID

		profile := pick(tags, domain.ProfileTagTypes)
		if _, err := tagSvc.Reconcile(ctx, userID, domain.UserOwner(userID), profile); err != nil {
			fmt.Printf("  %s: profile tags: %v\n", username, err)
		}

		project, err := projectSvc.Create(ctx, userID, service.CreateProjectRequest{
			Title:       fmt.Sprintf("%s's project", username),
			Description: "<p>Seeded <strong>demo</strong> project.</p>",
			IsPublic:    n%2 == 0,
		})
		if err != nil {
			log.Fatalf("Failed to create project: %v", err)
		}
		if _, err := tagSvc.Reconcile(ctx, userID, domain.ProjectOwner(project.ID), pick(tags, domain.ProjectTagTypes)); err != nil {
			fmt.Printf("  %s: project tags: %v\n", username, err)
		}

		for k := range 2 {
			task, err := taskSvc.Create(ctx, userID, service.CreateTaskRequest{
				ProjectID: project.ID,
				Title:     fmt.Sprintf("Task %d", k+1),
			})
			if err != nil {
				log.Fatalf("Failed to create task: %v", err)
			}
			if _, err := taskSvc.Update(ctx, userID, task.ID, service.UpdateTaskRequest{
				Tags: pick(tags, domain.TaskTagTypes),
			}); err != nil {
				fmt.Printf("  %s: task tags: %v\n", username, err)
			}
		}

		fmt.Printf("  created %s with project %s\n", username, project.ID)
	}

	fmt.Println("Done. Restart the server to rebuild the tag index if it was empty.")
}

// seedTags finds or creates every catalogue tag and returns their ids by type.
func seedTags(ctx context.Context, svc *service.TagService) map[domain.TagType][]string {
	out := make(map[domain.TagType][]string, len(catalogue))
	for tagType, names := range catalogue {
		for _, name := range names {
			tag, _, err := svc.FindOrCreate(ctx, service.CreateTagRequest{Type: tagType, Name: name})
			if err != nil {
				log.Fatalf("Failed to create tag %s/%s: %v", tagType, name, err)
			}
			out[tagType] = append(out[tagType], tag.ID)
		}
	}
	return out
}

// pick selects one random tag of each type the catalogue has.
func pick(tags map[domain.TagType][]string, types []domain.TagType) domain.Selection {
	sel := domain.Selection{}
	for _, t := range types {
		ids := tags[t]
		if len(ids) == 0 {
			continue
		}
		sel[t] = []string{ids[rand.IntN(len(ids))]}
	}
	return sel
}
