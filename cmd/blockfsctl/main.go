package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dargueta/blockfs"
	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Usage: "Inspect and manipulate blockfs disk images",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a fresh, empty image",
				ArgsUsage: "IMAGE_FILE",
				Action:    formatImage,
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    mkdir,
			},
			{
				Name:      "touch",
				Usage:     "Create an empty regular file",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    touch,
			},
			{
				Name:      "write",
				Usage:     "Write stdin into an existing file from offset 0 (the file is not truncated)",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    writeFile,
			},
			{
				Name:      "read",
				Usage:     "Print a file's contents to stdout",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    readFile,
			},
			{
				Name:      "ls",
				Usage:     "List a directory's entries",
				ArgsUsage: "IMAGE_FILE PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "csv", Usage: "render as CSV instead of a plain table"},
				},
				Action: listDir,
			},
			{
				Name:      "rm",
				Usage:     "Remove a file or empty directory",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    remove,
			},
			{
				Name:      "mv",
				Usage:     "Move or rename a file or directory",
				ArgsUsage: "IMAGE_FILE SRC DST",
				Action:    move,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("blockfsctl: %s", err)
	}
}

func formatImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("missing IMAGE_FILE argument", 1)
	}

	fs, err := blockfs.Format(path)
	if err != nil {
		return cli.Exit(err, 1)
	}
	return cli.Exit(fs.Unmount(), exitCodeFor(err))
}

func withMountedImage(c *cli.Context, fn func(fs *blockfs.FS) error) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("missing IMAGE_FILE argument", 1)
	}

	fs, err := blockfs.Mount(path)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if opErr := fn(fs); opErr != nil {
		_ = fs.Unmount()
		return cli.Exit(opErr, 1)
	}
	return cli.Exit(fs.Unmount(), 1)
}

func mkdir(c *cli.Context) error {
	path := c.Args().Get(1)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		return fs.Create(path, blockfs.KindDirectory)
	})
}

func touch(c *cli.Context) error {
	path := c.Args().Get(1)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		return fs.Create(path, blockfs.KindRegular)
	})
}

func writeFile(c *cli.Context) error {
	path := c.Args().Get(1)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		fd, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer fs.Close(fd)

		_, err = fs.Write(fd, data)
		return err
	})
}

func readFile(c *cli.Context) error {
	path := c.Args().Get(1)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		fd, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer fs.Close(fd)

		var out bytes.Buffer
		buf := make([]byte, 4096)
		for {
			n, err := fs.Read(fd, buf)
			if n > 0 {
				out.Write(buf[:n])
			}
			if n == 0 || err != nil {
				break
			}
		}
		_, err = os.Stdout.Write(out.Bytes())
		return err
	})
}

// dirEntryRow is the CSV-tagged row shape gocsv renders for `ls --csv`.
type dirEntryRow struct {
	Name        string `csv:"name"`
	InodeNumber int    `csv:"inode"`
	Kind        string `csv:"kind"`
}

func listDir(c *cli.Context) error {
	path := c.Args().Get(1)
	if path == "" {
		path = "/"
	}

	return withMountedImage(c, func(fs *blockfs.FS) error {
		entries, err := fs.GetDir(path)
		if err != nil {
			return err
		}

		if c.Bool("csv") {
			rows := make([]dirEntryRow, len(entries))
			for i, e := range entries {
				rows[i] = dirEntryRow{Name: e.Name, InodeNumber: e.InodeNumber, Kind: kindName(e.Kind)}
			}
			return gocsv.Marshal(rows, os.Stdout)
		}

		for _, e := range entries {
			fmt.Printf("%-4d %-8s %s\n", e.InodeNumber, kindName(e.Kind), e.Name)
		}
		return nil
	})
}

func kindName(k blockfs.FileKind) string {
	if k == blockfs.KindDirectory {
		return "dir"
	}
	return "file"
}

func remove(c *cli.Context) error {
	path := c.Args().Get(1)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		return fs.Remove(path)
	})
}

func move(c *cli.Context) error {
	src := c.Args().Get(1)
	dst := c.Args().Get(2)
	return withMountedImage(c, func(fs *blockfs.FS) error {
		return fs.Move(src, dst)
	})
}

func exitCodeFor(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
