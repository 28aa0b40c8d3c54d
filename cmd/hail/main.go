// README: Interactive client: wires the sync engine and maps stdin commands to actions.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"hail/internal/config"
	"hail/internal/countdown"
	"hail/internal/logger"
	"hail/internal/maps"
	"hail/internal/modules/action"
	"hail/internal/modules/geocode"
	"hail/internal/modules/reconcile"
	"hail/internal/modules/role"
	"hail/internal/transport"
	"hail/internal/types"
)

func main() {
	roleFlag := flag.String("role", "driver", "driver or passenger")
	userFlag := flag.String("user", "", "user id")
	flag.Parse()

	r := role.Role(*roleFlag)
	if r != role.Driver && r != role.Passenger {
		log.Fatalf("unknown role %q", *roleFlag)
	}
	if *userFlag == "" {
		log.Fatal("-user is required")
	}

	cfg := config.Load()
	lg := logger.New("hail", cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resolver *geocode.Resolver
	if cfg.Maps.APIKey != "" {
		geoSvc, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		resolver = geocode.NewResolver(geoSvc, lg)
	} else {
		lg.Warning("MAPS_API_KEY not set, showing raw coordinates")
	}

	ctrl := reconcile.NewController(ctx, reconcile.Deps{
		Resolver:     resolver,
		Log:          lg,
		AcceptWindow: cfg.Sync.AcceptWindow,
	})
	api := transport.NewClient(cfg.API.BaseURL, r, *userFlag, lg)
	exec := action.NewExecutor(ctrl, api, lg)

	ctrl.Subscribe(
		func(v reconcile.View) { printView(r, v) },
		func(remaining int) {
			if remaining != countdown.NoTimer {
				fmt.Printf("  %ds left to accept\n", remaining)
			}
		},
		func(q reconcile.QueueInfo) {
			if q.QueuePosition != nil {
				fmt.Printf("drivers online: %d (you are #%d)\n", q.DriversOnline, *q.QueuePosition)
				return
			}
			fmt.Printf("drivers online: %d\n", q.DriversOnline)
		},
	)

	push := transport.NewPushClient(cfg.Push.URL, r, *userFlag, ctrl.HandlePush, lg)
	go push.Run(ctx)
	go reconcile.NewPoller(ctrl, api, cfg.Sync.PollInterval, lg).Run(ctx)

	runPrompt(ctx, r, ctrl, exec, api)
}

func runPrompt(ctx context.Context, r role.Role, ctrl *reconcile.Controller, exec *action.Executor, api *transport.Client) {
	fmt.Printf("connected as %s; type 'help' for commands\n", r)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch cmd := fields[0]; cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp(r)
		case "status":
			printView(r, ctrl.View())
		case "done":
			ctrl.ClearTerminal()
		case "online", "offline":
			if !role.CanToggleAvailability(r) {
				fmt.Println("passengers have no availability toggle")
				continue
			}
			if err := exec.SetAvailability(ctx, cmd == "online"); err != nil {
				fmt.Println("error:", err)
			}
		case "order":
			if r != role.Passenger {
				fmt.Println("only passengers request rides")
				continue
			}
			pickup, dest, err := parseStops(fields[1:])
			if err != nil {
				fmt.Println("usage: order <pickup_lat> <pickup_lng> <dest_lat> <dest_lng>")
				continue
			}
			id, err := api.CreateOrder(ctx, pickup, dest)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("order placed:", id)
		case "accept", "reject", "start", "complete", "cancel":
			if err := exec.Submit(ctx, action.Kind(cmd)); err != nil {
				fmt.Println("error:", err)
			}
		default:
			fmt.Printf("unknown command %q, type 'help'\n", cmd)
		}
	}
}

func parseStops(args []string) (pickup, dest types.Point, err error) {
	if len(args) != 4 {
		return pickup, dest, fmt.Errorf("want 4 coordinates, got %d", len(args))
	}
	vals := make([]float64, 4)
	for i, a := range args {
		if vals[i], err = strconv.ParseFloat(a, 64); err != nil {
			return pickup, dest, err
		}
	}
	return types.Point{Lat: vals[0], Lng: vals[1]}, types.Point{Lat: vals[2], Lng: vals[3]}, nil
}

func printView(r role.Role, v reconcile.View) {
	if v.ID == "" {
		fmt.Println("no active order")
		return
	}
	fmt.Printf("order %s  [%s]\n  from: %s\n  to:   %s\n", v.ID, v.Status, v.Pickup, v.Destination)
	if kinds := role.Allowed(r, v.Status); len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		fmt.Println("  actions:", strings.Join(names, ", "))
	}
}

func printHelp(r role.Role) {
	fmt.Println("common: status, done, help, quit")
	if r == role.Driver {
		fmt.Println("driver: online, offline, accept, reject, start, complete")
		return
	}
	fmt.Println("passenger: order <pickup_lat> <pickup_lng> <dest_lat> <dest_lng>, cancel")
}
