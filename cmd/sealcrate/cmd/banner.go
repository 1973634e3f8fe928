package cmd

import (
	"fmt"
)

const banner = `
   _____            _  _____           _
  / ____|          | |/ ____|         | |
 | (___   ___  __ _| | |     _ __ __ _| |_ ___
  \___ \ / _ \/ _` + "`" + ` | | |    | '__/ _` + "`" + ` | __/ _ \
  ____) |  __/ (_| | | |____| | | (_| | ||  __/
 |_____/ \___|\__,_|_|\_____|_|  \__,_|\__\___|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Encrypted Crate Metadata - Version %s\x1b[0m\n\n", Version)
}
