package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/hashicorp/errwrap"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	"github.com/spf13/cobra"

	"clverify/issuerkey"
	"clverify/proof"
	"clverify/verifier"
)

const verifierID = "clcheck"

var errNotValid = errors.New("proof not valid")

type globalFlags struct {
	verbose bool
	base58  bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:          "clcheck",
		Short:        "Check CL credential proofs offline",
		Long:         `Verify equality and predicate proofs against issuer keys stored as JSON files.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Log verifier checkpoints to stderr.")
	flags.BoolVar(&g.base58, "base58", false, "Key files carry base58 over the decimal digits.")

	root.AddCommand(
		canonicalizeCmd(g),
		verifyCmd(g),
		verifyPredicateCmd(g),
		nonceCmd(),
	)
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) hclog.Logger {
	level := hclog.Warn
	if g.verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   verifierID,
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
}

func (g *globalFlags) hook(logger hclog.Logger) verifier.Hook {
	return verifier.HookFunc(func(e verifier.Event) {
		switch e.Stage {
		case verifier.StageFailed:
			logger.Warn("proof could not be interpreted", "kind", e.Kind, "issuer_keys", e.KeyIDs, "error", e.Err)
		default:
			logger.Debug("checkpoint", "kind", e.Kind, "stage", e.Stage, "issuer_keys", e.KeyIDs, "accepted", e.Accepted)
		}
	})
}

func (g *globalFlags) decoder() issuerkey.Decoder {
	if g.base58 {
		return issuerkey.Base58Decoder
	}
	return nil
}

// loadKey reads an issuer key file. id overrides the file's own "id".
func (g *globalFlags) loadKey(path, id string) (*issuerkey.PublicKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw map[string]interface{}
	if err := jsonutil.DecodeJSONFromReader(f, &raw); err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", path), err)
	}
	if id == "" {
		id, _ = raw["id"].(string)
	}
	if id == "" {
		return nil, fmt.Errorf("%s: no issuer key id, pass --key-id", path)
	}

	pk, err := issuerkey.FromMap(id, raw, g.decoder())
	if err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", path), err)
	}
	return pk.Canonicalize(), nil
}

func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := proof.DecodeJSON(f, out); err != nil {
		return errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", path), err)
	}
	return nil
}

func parseNonce(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("nonce %q is not a non-negative decimal integer", s)
	}
	return n, nil
}

func report(cmd *cobra.Command, ok bool) error {
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "not valid")
		return errNotValid
	}
	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}

func canonicalizeCmd(g *globalFlags) *cobra.Command {
	var keyPath, keyID string

	cmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Print an issuer key in canonical form.",
		Long:  `Reduce every generator modulo N and print the key as decimal strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := g.loadKey(keyPath, keyID)
			if err != nil {
				return err
			}
			buf, err := jsonutil.EncodeJSON(pk.ToWireWithMasterSecret())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(buf)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Issuer key file.")
	cmd.Flags().StringVar(&keyID, "key-id", "", "Issuer key id, if the file has none.")
	cmd.MarkFlagRequired("key")
	return cmd
}

func verifyCmd(g *globalFlags) *cobra.Command {
	var (
		keyPath, keyID, issuerID string
		proofPath, attrsPath     string
		nonce                    string
		revealed                 []string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a credential (equality) proof.",
		Long:  `Verify a credential proof against one issuer key. The attributes file maps attribute names to encoded values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := g.loadKey(keyPath, keyID)
			if err != nil {
				return err
			}
			n, err := parseNonce(nonce)
			if err != nil {
				return err
			}

			var p proof.EqualitySubProof
			if err := decodeFile(proofPath, &p); err != nil {
				return err
			}
			var attrs map[string]*big.Int
			if err := decodeFile(attrsPath, &attrs); err != nil {
				return err
			}

			proofID := issuerID
			if proofID == "" {
				proofID = pk.ID()
			}

			logger := g.logger(cmd)
			v := verifier.New(verifierID, nil, verifier.StaticKeyStore{pk.ID(): pk}, verifier.WithHook(g.hook(logger)))
			ok, err := v.Verify(cmd.Context(), verifier.VerifyRequest{
				IssuerID:      proofID,
				IssuerKeyID:   pk.ID(),
				Proof:         &p,
				Nonce:         n,
				Attrs:         proof.EncodedAttributes{proofID: attrs},
				RevealedAttrs: revealed,
			})
			if err != nil {
				return err
			}
			return report(cmd, ok)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&keyPath, "key", "k", "", "Issuer key file.")
	flags.StringVar(&keyID, "key-id", "", "Issuer key id, if the file has none.")
	flags.StringVar(&issuerID, "issuer-id", "", "Key of the proof's e, v and Aprime maps. Defaults to the key id.")
	flags.StringVarP(&proofPath, "proof", "p", "", "Proof file.")
	flags.StringVarP(&attrsPath, "attrs", "a", "", "Encoded attributes file.")
	flags.StringVarP(&nonce, "nonce", "n", "", "Decimal nonce the proof was made for.")
	flags.StringSliceVarP(&revealed, "revealed", "r", nil, "Attributes disclosed in clear.")
	for _, name := range []string{"key", "proof", "attrs", "nonce"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func verifyPredicateCmd(g *globalFlags) *cobra.Command {
	var (
		keys                 []string
		proofPath, attrsPath string
		predicatePath        string
		nonce                string
		revealed             []string
	)

	cmd := &cobra.Command{
		Use:   "verify-predicate",
		Short: "Verify a predicate proof.",
		Long: `Verify that hidden attributes reach lower bounds. Keys are given as id=file,
the attributes and predicate files are keyed by issuer key id, then attribute name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := verifier.StaticKeyStore{}
			for _, arg := range keys {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
					return fmt.Errorf("--key %q is not id=file", arg)
				}
				pk, err := g.loadKey(parts[1], parts[0])
				if err != nil {
					return err
				}
				store[parts[0]] = pk
			}

			n, err := parseNonce(nonce)
			if err != nil {
				return err
			}

			var p proof.PredicateProof
			if err := decodeFile(proofPath, &p); err != nil {
				return err
			}
			var attrs proof.EncodedAttributes
			if err := decodeFile(attrsPath, &attrs); err != nil {
				return err
			}
			var pred proof.Predicate
			if err := decodeFile(predicatePath, &pred); err != nil {
				return err
			}

			logger := g.logger(cmd)
			v := verifier.New(verifierID, nil, store, verifier.WithHook(g.hook(logger)))
			ok, err := v.VerifyPredicate(cmd.Context(), verifier.PredicateRequest{
				Proof:         &p,
				Nonce:         n,
				Attrs:         attrs,
				RevealedAttrs: revealed,
				Predicate:     pred,
			})
			if err != nil {
				return err
			}
			return report(cmd, ok)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&keys, "key", "k", nil, "Issuer key as id=file. Repeat for every key.")
	flags.StringVarP(&proofPath, "proof", "p", "", "Proof file.")
	flags.StringVarP(&attrsPath, "attrs", "a", "", "Encoded attributes file.")
	flags.StringVar(&predicatePath, "predicate", "", "Lower bounds file.")
	flags.StringVarP(&nonce, "nonce", "n", "", "Decimal nonce the proof was made for.")
	flags.StringSliceVarP(&revealed, "revealed", "r", nil, "Attributes disclosed in clear.")
	for _, name := range []string{"key", "proof", "attrs", "predicate", "nonce"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func nonceCmd() *cobra.Command {
	var interaction string

	cmd := &cobra.Command{
		Use:   "nonce",
		Short: "Draw a fresh proof nonce.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := verifier.New(verifierID, nil, verifier.StaticKeyStore{})
			n, err := v.GenerateNonce(interaction)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&interaction, "interaction", verifierID, "Interaction id recorded with the nonce.")
	return cmd
}
