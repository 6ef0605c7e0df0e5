// Command staffcrawler crawls school-district websites for staff directories.
package main

import "github.com/JakeFAU/district-staff-crawler/cmd"

func main() {
	cmd.Execute()
}
