package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
)

var (
	flagExpectedDigest  string
	flagExpectedIssuer  string
	flagExpectedSubject string
	flagRequireSET      bool
	flagFulcioInstance  string
	flagJournalOnly     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <bundle.json> <trust-root.json>",
	Short: "Verify a Sigstore bundle against a trust root",
	Long: `Verify parses a Sigstore bundle and a Sigstore trust root, checks the
DSSE envelope signature, the Fulcio certificate chain, and the bundle's
RFC 3161 or Rekor timestamp proof, and prints the resulting canonical
journal as a hex string.

Examples:
  slsaverify verify bundle.json trusted_root.json
  slsaverify verify --expected-digest sha256:... bundle.json trusted_root.json
  slsaverify verify --fulcio-instance github bundle.json trusted_root.json`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&flagExpectedDigest, "expected-digest", "", "subject digest the bundle must attest to, as algorithm:hex (e.g. sha256:...)")
	verifyCmd.Flags().StringVar(&flagExpectedIssuer, "expected-issuer", "", "OIDC issuer the signer's certificate must carry")
	verifyCmd.Flags().StringVar(&flagExpectedSubject, "expected-subject", "", "OIDC subject the signer's certificate must carry")
	verifyCmd.Flags().BoolVar(&flagRequireSET, "require-set", false, "require a valid Rekor signed entry timestamp")
	verifyCmd.Flags().StringVar(&flagFulcioInstance, "fulcio-instance", "", "restrict trust-root CA selection to one Fulcio deployment: any, github, public-good")
	verifyCmd.Flags().BoolVar(&flagJournalOnly, "journal-only", false, "print only the hex-encoded journal, no summary")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := logger()

	bundlePath, trustRootPath := args[0], args[1]

	bundleBytes, err := os.ReadFile(bundlePath)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	trustRootBytes, err := os.ReadFile(trustRootPath)
	if err != nil {
		return fmt.Errorf("read trust root: %w", err)
	}

	opts := verifier.VerificationOptions{
		ExpectedIssuer:  orFlagThenConfig(flagExpectedIssuer, viper.GetString("verify.expected_issuer")),
		ExpectedSubject: orFlagThenConfig(flagExpectedSubject, viper.GetString("verify.expected_subject")),
		RequireSET:      flagRequireSET || viper.GetBool("verify.require_set"),
	}

	if flagExpectedDigest != "" {
		d, derr := digest.Parse(flagExpectedDigest)
		if derr != nil {
			return fmt.Errorf("parse --expected-digest: %w", derr)
		}
		encoded, derr := hex.DecodeString(d.Encoded())
		if derr != nil {
			return fmt.Errorf("decode --expected-digest: %w", derr)
		}
		opts.ExpectedDigest = encoded
	}

	instance := flagFulcioInstance
	if instance == "" {
		instance = viper.GetString("verify.fulcio_instance")
	}
	fi, ferr := parseFulcioInstance(instance)
	if ferr != nil {
		return ferr
	}
	opts.FulcioInstance = fi

	log.Debug("verifying bundle", "bundle", bundlePath, "trust_root", trustRootPath)

	result, verr := verifier.Verify(bundleBytes, trustRootBytes, opts)
	if verr != nil {
		return fmt.Errorf("verification failed: %w", verr)
	}

	journal := hex.EncodeToString(result.Journal())
	if flagJournalOnly {
		fmt.Println(journal)
		return nil
	}

	fmt.Printf("verification succeeded\n")
	fmt.Printf("  proof type:       %v\n", result.ProofType)
	fmt.Printf("  timestamp:        %d\n", result.Timestamp)
	fmt.Printf("  subject digest:   %x\n", result.SubjectDigest)
	fmt.Printf("  oidc issuer:      %s\n", result.OIDCIssuer)
	fmt.Printf("  oidc subject:     %s\n", result.OIDCSubject)
	if result.OIDCRepository != "" {
		fmt.Printf("  repository:       %s\n", result.OIDCRepository)
	}
	if result.OIDCWorkflowRef != "" {
		fmt.Printf("  workflow ref:     %s\n", result.OIDCWorkflowRef)
	}
	fmt.Printf("  journal:          %s\n", journal)

	return nil
}

func orFlagThenConfig(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func parseFulcioInstance(s string) (verifier.FulcioInstance, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return verifier.FulcioInstanceAny, nil
	case "github":
		return verifier.FulcioInstanceGithub, nil
	case "public-good", "publicgood":
		return verifier.FulcioInstancePublicGood, nil
	default:
		return 0, fmt.Errorf("unknown --fulcio-instance %q (want any, github, or public-good)", s)
	}
}
