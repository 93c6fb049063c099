// Command discusctl talks to a running image service.
//
//	discusctl [-addr URL] health
//	discusctl [-addr URL] predict <image>
//	discusctl [-addr URL] upload <image>
//	discusctl [-addr URL] cleanup
//	discusctl token [-subject NAME]
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"discus-vision/internal/client"
	"discus-vision/internal/config"
	"discus-vision/internal/pkg/jwtutil"
	"discus-vision/internal/pkg/logger"
	"discus-vision/internal/vision"
)

func main() {
	addr := flag.String("addr", "http://localhost:3001", "image service base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per command timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	applog, err := logger.New("dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(applog)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*addr, client.WithLogger(applog))
	args := flag.Args()

	switch args[0] {
	case "health":
		if !c.IsAvailable(ctx) {
			fmt.Println("service unavailable")
			os.Exit(1)
		}
		fmt.Println("ok")
	case "predict":
		f, name, contentType := openImage(args)
		defer f.Close()
		out := c.UploadImage(ctx, name, contentType, f)
		if !out.Success {
			fail(out.Error)
		}
		fmt.Printf("%s (%s, %s)\n%s\n",
			vision.DisplayName(out.Prediction.PredictedClass),
			out.Prediction.Confidence,
			vision.LevelOf(out.Prediction.Confidence),
			out.Prediction.Description,
		)
	case "upload":
		f, name, contentType := openImage(args)
		defer f.Close()
		out := c.StoreImage(ctx, name, contentType, f)
		if !out.Success {
			fail(out.Error)
		}
		fmt.Printf("stored %s at %s\n", out.Filename, out.Path)
	case "cleanup":
		out := c.Cleanup(ctx)
		if !out.Success {
			fail(out.Error)
		}
		fmt.Printf("deleted %d files\n", out.DeletedCount)
	case "token":
		issueToken(args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func openImage(args []string) (*os.File, string, string) {
	if len(args) < 2 {
		fail("missing image path")
	}
	f, err := os.Open(args[1])
	if err != nil {
		fail(err.Error())
	}
	name := filepath.Base(args[1])
	return f, name, mime.TypeByExtension(filepath.Ext(name))
}

func issueToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "operator", "token subject")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
	}
	token, err := jwtutil.GenerateToken(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		*subject,
		jwtutil.RoleOperator,
	)
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(token)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-addr URL] [-timeout D] health|predict <image>|upload <image>|cleanup|token [-subject NAME]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}
