// Package fixture discovers conformance fixtures and derives their expected output.
//
// A fixture is a plain text file holding the input for the program under test
// together with its expected output. Every line containing the marker "# "
// contributes the text after the first marker, plus a newline, to the expected
// output:
//
//	print 1 + 1
//	# 2
//	print "a # b"
//	# a # b
//
// yields the expected output "2\na # b\n". A fixture without markers expects
// the program to print nothing at all.
//
// # Discovery
//
// Discover lists a single directory (no recursion) and keeps the regular files
// whose name ends with the fixture extension, sorted by name:
//
//	fixtures, err := fixture.Discover("test", fixture.DefaultExtension)
//	if err != nil {
//	    var de *fixture.DiscoveryError
//	    if errors.As(err, &de) {
//	        log.Fatal(de)
//	    }
//	}
package fixture
