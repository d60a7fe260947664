package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour_navigator"
	"github.com/gorustyt/navmeshupdater/recast"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
)

var (
	configPath   = pflag.StringP("config", "c", "", "settings file")
	writeDefault = pflag.String("write-default", "", "write default settings to this file and exit")
	playerX      = pflag.Float32("player-x", 76, "player x")
	playerZ      = pflag.Float32("player-z", 72, "player z")
	boxes        = pflag.Int("boxes", 16, "number of moving boxes")
	steps        = pflag.Int("steps", 5, "number of box moves")
	timeout      = pflag.Duration("timeout", time.Minute, "wait timeout for each step")
)

func main() {
	pflag.Parse()
	if *writeDefault != "" {
		if err := config.WriteDefault(*writeDefault); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logs.New(settings.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	navigator, err := detour_navigator.NewNavigator(settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := navigator.Close(); err == nil {
			err = closeErr
		}
	}()

	agent := common.Vec3{29, 66, 29}
	navigator.AddAgent(agent)

	terrain := recast.NewHeightfield(5, 128, []float32{
		0, 0, 0, 0, 0,
		0, -25, -25, -25, -25,
		0, -25, -100, -100, -100,
		0, -25, -100, -100, -100,
		0, -25, -100, -100, -100,
	})
	if err := navigator.AddObject(0, terrain, recast.Transform{}); err != nil {
		return err
	}
	box := recast.NewBox(20, 20, 20)
	for i := 1; i <= *boxes; i++ {
		transform := recast.Translation(float32(i*10), float32(i*10), float32(i*10))
		if err := navigator.AddObject(recast.ObjectId(i), box, transform); err != nil {
			return err
		}
	}

	player := common.Vec3{*playerX, 0, *playerZ}
	step := func(name string) error {
		start := time.Now()
		navigator.Update(player)
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := navigator.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		navMesh, _ := navigator.GetNavMesh(agent)
		log.Info("navmesh ready",
			zap.String("step", name),
			zap.Int("tiles", navMesh.TileCount()),
			zap.Uint64("generation", navMesh.GetGeneration()),
			zap.Uint64("revision", navMesh.GetNavMeshRevision()),
			zap.Duration("time", time.Since(start)))
		return nil
	}

	if err := step("initial"); err != nil {
		return err
	}
	for s := 1; s <= *steps; s++ {
		for i := 1; i <= *boxes; i++ {
			transform := recast.Translation(float32(i*10+s), float32(i*10), float32(i*10+s))
			if err := navigator.UpdateObject(recast.ObjectId(i), box, transform); err != nil {
				return err
			}
		}
		if err := step(fmt.Sprintf("move %d", s)); err != nil {
			return err
		}
	}

	stats, err := navigator.ReportStats().ToProto()
	if err != nil {
		return err
	}
	out, err := protojson.Marshal(stats)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
