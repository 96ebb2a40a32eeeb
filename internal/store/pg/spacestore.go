package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
)

// SpaceStore implements space.Service on PostgreSQL. The Space aggregate is
// assembled from four tables on every read; membership and grants are small
// per space so the joinless fan-out reads stay cheap.
type SpaceStore struct {
	db *sql.DB
}

var _ space.Service = (*SpaceStore)(nil)

func (s *SpaceStore) CreateSpace(ctx context.Context, ownerID, ownerEmail, name string) (space.Space, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return space.Space{}, space.ErrInvalidInput
	}
	id := ids.WithPrefix("sp")
	settings, _ := json.Marshal(space.NDASettings{})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return space.Space{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`insert into spaces(id, user_id, name, nda_settings) values($1,$2,$3,$4)`,
		id, ownerID, name, settings); err != nil {
		return space.Space{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into space_members(space_id, email, user_id, role) values($1,$2,$3,'owner')`,
		id, strings.ToLower(strings.TrimSpace(ownerEmail)), ownerID); err != nil {
		return space.Space{}, err
	}
	if err := tx.Commit(); err != nil {
		return space.Space{}, err
	}
	return s.GetSpace(ctx, id)
}

func (s *SpaceStore) GetSpace(ctx context.Context, id string) (space.Space, error) {
	var (
		sp       space.Space
		settings []byte
	)
	err := s.db.QueryRowContext(ctx,
		`select id, user_id, name, nda_settings, created_at, updated_at from spaces where id=$1`, id).
		Scan(&sp.ID, &sp.UserID, &sp.Name, &settings, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return space.Space{}, space.ErrNotFound
	}
	if err != nil {
		return space.Space{}, err
	}
	_ = json.Unmarshal(settings, &sp.NDASettings)

	if sp.Members, err = s.members(ctx, id); err != nil {
		return space.Space{}, err
	}
	if sp.FolderPermissions, err = s.folderPermissions(ctx, id); err != nil {
		return space.Space{}, err
	}
	if sp.NDASignatures, err = s.ndaSignatures(ctx, id); err != nil {
		return space.Space{}, err
	}
	return sp, nil
}

func (s *SpaceStore) members(ctx context.Context, spaceID string) ([]space.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`select email, coalesce(user_id,''), role, joined_at from space_members where space_id=$1 order by joined_at asc`,
		spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []space.Member
	for rows.Next() {
		var m space.Member
		if err := rows.Scan(&m.Email, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SpaceStore) folderPermissions(ctx context.Context, spaceID string) ([]space.FolderPermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, space_id, folder_id, email, can_view, can_download, can_upload, expires_at, created_at
		from folder_permissions where space_id=$1
	`, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []space.FolderPermission
	for rows.Next() {
		var (
			g       space.FolderPermission
			expires sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.SpaceID, &g.FolderID, &g.Email,
			&g.CanView, &g.CanDownload, &g.CanUpload, &expires, &g.CreatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			g.ExpiresAt = expires.Time
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SpaceStore) ndaSignatures(ctx context.Context, spaceID string) ([]space.NDASignature, error) {
	rows, err := s.db.QueryContext(ctx,
		`select email, version, signed_at from nda_signatures where space_id=$1 order by signed_at asc`, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []space.NDASignature
	for rows.Next() {
		var sig space.NDASignature
		if err := rows.Scan(&sig.Email, &sig.Version, &sig.SignedAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SpaceStore) AddMember(ctx context.Context, spaceID string, member space.Member) (space.Space, error) {
	member.Email = strings.ToLower(strings.TrimSpace(member.Email))
	if member.Email == "" {
		return space.Space{}, space.ErrInvalidInput
	}
	// Role strings are stored as provided; normalization happens at read time.
	res, err := s.db.ExecContext(ctx, `
		insert into space_members(space_id, email, user_id, role)
		select $1,$2,nullif($3,''),$4 where exists (select 1 from spaces where id=$1)
		on conflict (space_id, email) do nothing
	`, spaceID, member.Email, member.UserID, member.Role)
	if err != nil {
		return space.Space{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetSpace(ctx, spaceID); err != nil {
			return space.Space{}, err
		}
		return space.Space{}, space.ErrAlreadyExists
	}
	return s.GetSpace(ctx, spaceID)
}

func (s *SpaceStore) SetMemberRole(ctx context.Context, spaceID, email, role string) (space.Space, error) {
	res, err := s.db.ExecContext(ctx,
		`update space_members set role=$3 where space_id=$1 and lower(email)=lower($2)`,
		spaceID, strings.TrimSpace(email), role)
	if err != nil {
		return space.Space{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return space.Space{}, space.ErrNotFound
	}
	return s.GetSpace(ctx, spaceID)
}

func (s *SpaceStore) CreateFolder(ctx context.Context, spaceID, name string) (space.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return space.Folder{}, space.ErrInvalidInput
	}
	f := space.Folder{ID: ids.WithPrefix("fld"), SpaceID: spaceID, Name: name, CreatedAt: time.Now().UTC()}
	res, err := s.db.ExecContext(ctx, `
		insert into space_folders(id, space_id, name)
		select $1,$2,$3 where exists (select 1 from spaces where id=$2)
	`, f.ID, spaceID, name)
	if err != nil {
		return space.Folder{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return space.Folder{}, space.ErrNotFound
	}
	return f, nil
}

func (s *SpaceStore) GrantFolderPermission(ctx context.Context, grant space.FolderPermission) (space.FolderPermission, error) {
	grant.Email = strings.ToLower(strings.TrimSpace(grant.Email))
	if grant.Email == "" || grant.FolderID == "" {
		return space.FolderPermission{}, space.ErrInvalidInput
	}
	if grant.ID == "" {
		grant.ID = ids.WithPrefix("fp")
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		insert into folder_permissions(id, space_id, folder_id, email, can_view, can_download, can_upload, expires_at)
		select $1,$2,$3,$4,$5,$6,$7,$8
		where exists (select 1 from space_folders where id=$3 and space_id=$2)
		on conflict (folder_id, email) do update
		set can_view = excluded.can_view,
		    can_download = excluded.can_download,
		    can_upload = excluded.can_upload,
		    expires_at = excluded.expires_at
	`, grant.ID, grant.SpaceID, grant.FolderID, grant.Email,
		grant.CanView, grant.CanDownload, grant.CanUpload, nullTime(grant.ExpiresAt))
	if err != nil {
		return space.FolderPermission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return space.FolderPermission{}, space.ErrNotFound
	}
	return grant, nil
}

func (s *SpaceStore) SetNDASettings(ctx context.Context, spaceID string, settings space.NDASettings) (space.Space, error) {
	if settings.Version == 0 {
		var current []byte
		err := s.db.QueryRowContext(ctx, `select nda_settings from spaces where id=$1`, spaceID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return space.Space{}, space.ErrNotFound
		}
		if err != nil {
			return space.Space{}, err
		}
		var prev space.NDASettings
		_ = json.Unmarshal(current, &prev)
		settings.Version = prev.Version + 1
	}
	raw, _ := json.Marshal(settings)
	res, err := s.db.ExecContext(ctx,
		`update spaces set nda_settings=$2, updated_at=now() where id=$1`, spaceID, raw)
	if err != nil {
		return space.Space{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return space.Space{}, space.ErrNotFound
	}
	return s.GetSpace(ctx, spaceID)
}

func (s *SpaceStore) CreateInvitation(ctx context.Context, inv space.Invitation) (space.Invitation, error) {
	if inv.SpaceID == "" || strings.TrimSpace(inv.Email) == "" {
		return space.Invitation{}, space.ErrInvalidInput
	}
	if inv.Token == "" {
		inv.Token = captoken.New().String()
	}
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `select name from spaces where id=$1`, inv.SpaceID).Scan(&inv.SpaceName)
	if errors.Is(err, sql.ErrNoRows) {
		return space.Invitation{}, space.ErrNotFound
	}
	if err != nil {
		return space.Invitation{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		insert into invitations(token, space_id, email, role, invited_by, expires_at)
		values ($1,$2,$3,$4,$5,$6)
	`, inv.Token, inv.SpaceID, inv.Email, inv.Role, inv.InvitedBy, nullTime(inv.ExpiresAt)); err != nil {
		return space.Invitation{}, err
	}
	return inv, nil
}

func (s *SpaceStore) GetInvitation(ctx context.Context, token string) (space.Invitation, error) {
	var (
		inv     space.Invitation
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select i.token, i.space_id, sp.name, i.email, i.role, i.invited_by, i.expires_at, i.created_at
		from invitations i join spaces sp on sp.id = i.space_id
		where i.token=$1
	`, token).Scan(&inv.Token, &inv.SpaceID, &inv.SpaceName, &inv.Email, &inv.Role, &inv.InvitedBy, &expires, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return space.Invitation{}, space.ErrNotFound
	}
	if err != nil {
		return space.Invitation{}, err
	}
	if expires.Valid {
		inv.ExpiresAt = expires.Time
	}
	return inv, nil
}

func (s *SpaceStore) AcceptNDA(ctx context.Context, acceptance space.NDAAcceptance) (space.NDAAcceptance, error) {
	acceptance.SignerEmail = strings.ToLower(strings.TrimSpace(acceptance.SignerEmail))
	if acceptance.SpaceID == "" || acceptance.SignerEmail == "" {
		return space.NDAAcceptance{}, space.ErrInvalidInput
	}
	if acceptance.CertificateID == "" {
		acceptance.CertificateID = ids.WithPrefix("cert")
	}
	if acceptance.AcceptedAt.IsZero() {
		acceptance.AcceptedAt = time.Now().UTC()
	}
	if acceptance.NDAVersion == 0 || acceptance.NDAText == "" {
		var raw []byte
		err := s.db.QueryRowContext(ctx, `select nda_settings from spaces where id=$1`, acceptance.SpaceID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return space.NDAAcceptance{}, space.ErrNotFound
		}
		if err != nil {
			return space.NDAAcceptance{}, err
		}
		var settings space.NDASettings
		_ = json.Unmarshal(raw, &settings)
		if acceptance.NDAVersion == 0 {
			acceptance.NDAVersion = settings.Version
		}
		if acceptance.NDAText == "" {
			acceptance.NDAText = settings.Text
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return space.NDAAcceptance{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into nda_signatures(space_id, email, version, signed_at)
		values ($1,$2,$3,$4) on conflict (space_id, email) do nothing
	`, acceptance.SpaceID, acceptance.SignerEmail, acceptance.NDAVersion, acceptance.AcceptedAt); err != nil {
		return space.NDAAcceptance{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into nda_acceptances(certificate_id, space_id, document_title, signer_email, signer_name,
			ip_address, user_agent, nda_version, nda_text, accepted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, acceptance.CertificateID, acceptance.SpaceID, acceptance.DocumentTitle, acceptance.SignerEmail,
		acceptance.SignerName, acceptance.IPAddress, acceptance.UserAgent,
		acceptance.NDAVersion, acceptance.NDAText, acceptance.AcceptedAt); err != nil {
		return space.NDAAcceptance{}, err
	}
	if err := tx.Commit(); err != nil {
		return space.NDAAcceptance{}, err
	}
	return acceptance, nil
}

func (s *SpaceStore) GetNDAAcceptance(ctx context.Context, certificateID string) (space.NDAAcceptance, error) {
	var acc space.NDAAcceptance
	err := s.db.QueryRowContext(ctx, `
		select certificate_id, space_id, document_title, signer_email, signer_name,
			ip_address, user_agent, nda_version, nda_text, accepted_at
		from nda_acceptances where certificate_id=$1
	`, certificateID).Scan(&acc.CertificateID, &acc.SpaceID, &acc.DocumentTitle, &acc.SignerEmail,
		&acc.SignerName, &acc.IPAddress, &acc.UserAgent, &acc.NDAVersion, &acc.NDAText, &acc.AcceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return space.NDAAcceptance{}, space.ErrNotFound
	}
	if err != nil {
		return space.NDAAcceptance{}, err
	}
	return acc, nil
}
